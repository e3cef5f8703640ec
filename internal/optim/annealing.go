package optim

import (
	"context"
	"math"
	"math/rand"
)

// Annealing is simulated annealing with Gaussian moves whose size shrinks
// with the temperature. After Patience evaluations without improving the
// best cost it restarts from a fresh uniform sample.
type Annealing struct {
	InitialTemp float64
	Cooling     float64
	// StepScale is the move standard deviation as a fraction of each
	// variable's range at the initial temperature.
	StepScale float64
	MinStep   float64
	Patience  int
}

func NewAnnealing() *Annealing {
	return &Annealing{
		InitialTemp: 100,
		Cooling:     0.97,
		StepScale:   0.25,
		MinStep:     0.02,
		Patience:    60,
	}
}

func (*Annealing) Name() string { return "annealing" }

func (a *Annealing) Optimize(ctx context.Context, bounds []Interval, budget int, rng *rand.Rand, obj Objective) error {
	if err := validate(bounds, budget); err != nil {
		return err
	}

	x := uniform(rng, bounds)
	fx, err := call(ctx, obj, x)
	if err != nil {
		return err
	}
	best := fx
	temp := a.InitialTemp
	stale := 0

	for i := 1; i < budget; i++ {
		if a.Patience > 0 && stale >= a.Patience {
			x = uniform(rng, bounds)
			if fx, err = call(ctx, obj, x); err != nil {
				return err
			}
			temp = a.InitialTemp
			stale = 0
			if fx < best {
				best = fx
			}
			continue
		}

		cand := a.neighbour(rng, bounds, x, temp)
		fc, err := call(ctx, obj, cand)
		if err != nil {
			return err
		}

		if accept(rng, fx, fc, temp) {
			x, fx = cand, fc
		}
		if fc < best {
			best = fc
			stale = 0
		} else {
			stale++
		}
		temp *= a.Cooling
	}
	return nil
}

func (a *Annealing) neighbour(rng *rand.Rand, bounds []Interval, x []float64, temp float64) []float64 {
	frac := a.StepScale
	if a.InitialTemp > 0 {
		frac *= temp / a.InitialTemp
	}
	frac = math.Max(frac, a.MinStep)

	cand := make([]float64, len(x))
	for i, iv := range bounds {
		cand[i] = iv.Clamp(x[i] + rng.NormFloat64()*frac*iv.Width())
	}
	return cand
}

// accept is the Metropolis criterion. Improvements are always taken;
// worse candidates with probability exp(-delta/temp).
func accept(rng *rand.Rand, current, candidate, temp float64) bool {
	if candidate <= current {
		return true
	}
	if math.IsInf(candidate, 1) || temp <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-(candidate-current)/temp)
}
