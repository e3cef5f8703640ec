package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/metrics"
	"github.com/jhu066/ijon-taliro/internal/optim"
)

// Model is the system under test. *blackbox.Model satisfies it.
type Model interface {
	Evaluate(ctx context.Context, sample dynamo.Sample) (dynamo.Trajectory, dynamo.CommandSequence, error)
}

// Observer is notified after every evaluation. Runs execute in parallel, so
// implementations must be safe for concurrent use.
type Observer interface {
	OnEvaluation(run, iteration int, e dynamo.Evaluation)
}

type ObserverFunc func(run, iteration int, e dynamo.Evaluation)

func (f ObserverFunc) OnEvaluation(run, iteration int, e dynamo.Evaluation) { f(run, iteration, e) }

type Options struct {
	Runs   int
	Budget int
	// Seed is the base seed; run i uses Seed+i.
	Seed     int64
	Parallel int
	// StopOnFalsification ends a run at the first negative cost.
	StopOnFalsification bool
}

// Falsifier searches the model's input space for trajectories that violate
// the requirement.
type Falsifier struct {
	model     Model
	spec      metrics.Specification
	optimizer optim.Optimizer
	sampler   optim.Sampler
	opts      Options
	logger    *slog.Logger

	mu        sync.Mutex
	observers []Observer
}

func New(model Model, spec metrics.Specification, optimizer optim.Optimizer, sampler optim.Sampler, opts Options, logger *slog.Logger) (*Falsifier, error) {
	if model == nil || spec == nil || optimizer == nil {
		return nil, errors.New("experiment: model, requirement and optimizer are required")
	}
	if opts.Runs < 1 {
		return nil, fmt.Errorf("experiment: runs must be positive, got %d", opts.Runs)
	}
	if opts.Budget < 1 {
		return nil, fmt.Errorf("experiment: budget must be positive, got %d", opts.Budget)
	}
	if len(sampler.Bounds()) == 0 {
		return nil, errors.New("experiment: sampler declares no control points")
	}
	if len(sampler.Span.Times(sampler.StepSize)) == 0 {
		return nil, fmt.Errorf("experiment: empty time span %v with step %g", sampler.Span, sampler.StepSize)
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Falsifier{
		model:     model,
		spec:      spec,
		optimizer: optimizer,
		sampler:   sampler,
		opts:      opts,
		logger:    logger.With(slog.String("component", "experiment")),
	}, nil
}

func (f *Falsifier) AddObserver(o Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *Falsifier) Options() Options { return f.opts }

// Run executes every trial and returns them in run order. On error the
// collection holds whatever the trials recorded before stopping.
func (f *Falsifier) Run(ctx context.Context) (dynamo.RunCollection, error) {
	f.logger.Info("starting falsification",
		slog.String("optimizer", f.optimizer.Name()),
		slog.String("requirement", f.spec.Name()),
		slog.Int("runs", f.opts.Runs),
		slog.Int("budget", f.opts.Budget),
		slog.Int("parallel", f.opts.Parallel),
	)

	runs := make(dynamo.RunCollection, f.opts.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Parallel)
	for i := range runs {
		g.Go(func() error {
			run, err := f.trial(gctx, i)
			runs[i] = run
			return err
		})
	}
	err := g.Wait()
	return runs, err
}

func (f *Falsifier) trial(ctx context.Context, index int) (dynamo.Run, error) {
	seed := f.opts.Seed + int64(index)
	run := dynamo.Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		Optimizer: f.optimizer.Name(),
	}
	logger := f.logger.With(slog.Int("run", index), slog.String("id", run.ID))
	logger.Debug("run started", slog.Int64("seed", seed))

	obj := func(ctx context.Context, x []float64) (float64, error) {
		e, err := f.evaluate(ctx, x)
		if err != nil {
			return 0, err
		}
		run.Evaluations = append(run.Evaluations, e)
		iter := len(run.Evaluations) - 1
		f.notify(index, iter, e)

		if e.Failed() {
			logger.Warn("evaluation failed", slog.Int("iteration", iter), slog.String("error", e.Failure))
		}
		if f.opts.StopOnFalsification && e.Falsified() {
			logger.Info("requirement falsified", slog.Int("iteration", iter), slog.Float64("cost", e.Cost))
			return e.Cost, optim.ErrStop
		}
		return e.Cost, nil
	}

	rng := rand.New(rand.NewSource(seed))
	err := f.optimizer.Optimize(ctx, f.sampler.Bounds(), f.opts.Budget, rng, obj)
	if errors.Is(err, optim.ErrStop) {
		err = nil
	}
	if err != nil {
		return run, fmt.Errorf("run %d: %w", index, err)
	}

	logger.Debug("run finished",
		slog.Int("evaluations", len(run.Evaluations)),
		slog.Int("failures", run.Failures()),
	)
	return run, nil
}

// evaluate scores one decision vector. Simulator and parse failures become
// +Inf evaluations; anything else aborts the search.
func (f *Falsifier) evaluate(ctx context.Context, x []float64) (dynamo.Evaluation, error) {
	sample, err := f.sampler.Sample(x)
	if err != nil {
		return dynamo.Evaluation{}, err
	}

	traj, seq, err := f.model.Evaluate(ctx, sample)
	if err != nil {
		if Recoverable(err) {
			return dynamo.Evaluation{
				Cost:    math.Inf(1),
				Trace:   dynamo.Trajectory{Times: sample.Times(), States: []dynamo.State{}},
				Model:   dynamo.CommandSequence{},
				Failure: err.Error(),
			}, nil
		}
		return dynamo.Evaluation{}, err
	}

	cost, err := f.spec.Evaluate(traj)
	if err != nil {
		return dynamo.Evaluation{}, fmt.Errorf("scoring trajectory: %w", err)
	}
	return dynamo.Evaluation{Cost: cost, Trace: traj, Model: seq}, nil
}

func (f *Falsifier) notify(run, iter int, e dynamo.Evaluation) {
	f.mu.Lock()
	observers := f.observers
	f.mu.Unlock()
	for _, o := range observers {
		o.OnEvaluation(run, iter, e)
	}
}

// Recoverable reports whether err is confined to one evaluation, so the
// search may record it and continue.
func Recoverable(err error) bool {
	return errors.Is(err, dynamo.ErrSimulationFailure) || errors.Is(err, dynamo.ErrMalformedTrajectoryLine)
}
