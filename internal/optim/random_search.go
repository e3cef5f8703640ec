package optim

import (
	"context"
	"math/rand"
)

// UniformRandom samples every candidate independently and uniformly.
type UniformRandom struct{}

func NewUniformRandom() *UniformRandom { return &UniformRandom{} }

func (*UniformRandom) Name() string { return "uniform" }

func (*UniformRandom) Optimize(ctx context.Context, bounds []Interval, budget int, rng *rand.Rand, obj Objective) error {
	if err := validate(bounds, budget); err != nil {
		return err
	}
	for i := 0; i < budget; i++ {
		if _, err := call(ctx, obj, uniform(rng, bounds)); err != nil {
			return err
		}
	}
	return nil
}
