package experiment

import (
	"fmt"
	"sort"

	"github.com/jhu066/ijon-taliro/internal/optim"
)

type Registry struct {
	optimizers map[string]func() optim.Optimizer
}

func NewRegistry() *Registry {
	r := &Registry{
		optimizers: make(map[string]func() optim.Optimizer),
	}

	r.optimizers["uniform"] = func() optim.Optimizer { return optim.NewUniformRandom() }
	r.optimizers["annealing"] = func() optim.Optimizer { return optim.NewAnnealing() }

	return r
}

func (r *Registry) Register(name string, fn func() optim.Optimizer) {
	r.optimizers[name] = fn
}

func (r *Registry) GetOptimizer(name string) (optim.Optimizer, error) {
	fn, ok := r.optimizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListOptimizers() []string {
	names := make([]string, 0, len(r.optimizers))
	for name := range r.optimizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
