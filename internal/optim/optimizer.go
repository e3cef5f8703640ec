package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrStop may be returned by an Objective to end the search early without
// reporting a failure.
var ErrStop = errors.New("optim: stop requested")

// Interval is the closed range one decision variable may take.
type Interval struct {
	Min float64
	Max float64
}

func (iv Interval) Width() float64 { return iv.Max - iv.Min }

// Clamp reflects v back into the interval. The reflection is periodic with
// period 2*Width, so v is reduced modulo that first.
func (iv Interval) Clamp(v float64) float64 {
	w := iv.Width()
	if w <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return iv.Min
	}
	if v >= iv.Min && v <= iv.Max {
		return v
	}
	d := math.Mod(v-iv.Min, 2*w)
	if d < 0 {
		d += 2 * w
	}
	if d > w {
		d = 2*w - d
	}
	return math.Min(math.Max(iv.Min+d, iv.Min), iv.Max)
}

// Objective scores one candidate. Lower is better. A non-nil error ends the
// search and is returned by Optimize.
type Objective func(ctx context.Context, x []float64) (float64, error)

// Optimizer proposes candidates within bounds and calls the objective at
// most budget times.
type Optimizer interface {
	Name() string
	Optimize(ctx context.Context, bounds []Interval, budget int, rng *rand.Rand, obj Objective) error
}

func validate(bounds []Interval, budget int) error {
	if len(bounds) == 0 {
		return errors.New("optim: no decision variables")
	}
	if budget < 1 {
		return fmt.Errorf("optim: budget must be positive, got %d", budget)
	}
	for i, iv := range bounds {
		if iv.Max < iv.Min || math.IsNaN(iv.Min) || math.IsNaN(iv.Max) {
			return fmt.Errorf("optim: invalid bounds for variable %d: [%g, %g]", i, iv.Min, iv.Max)
		}
	}
	return nil
}

func uniform(rng *rand.Rand, bounds []Interval) []float64 {
	x := make([]float64, len(bounds))
	for i, iv := range bounds {
		x[i] = iv.Min + rng.Float64()*iv.Width()
	}
	return x
}

// score maps NaN to +Inf so comparisons stay meaningful.
func score(f float64) float64 {
	if math.IsNaN(f) {
		return math.Inf(1)
	}
	return f
}

func call(ctx context.Context, obj Objective, x []float64) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	f, err := obj(ctx, x)
	if err != nil {
		return 0, err
	}
	return score(f), nil
}
