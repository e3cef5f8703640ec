package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// stateEnv is the environment a requirement expression is evaluated in, once
// per trajectory state.
type stateEnv struct {
	X     float64 `expr:"x"`
	Y     float64 `expr:"y"`
	Dead  bool    `expr:"dead"`
	Start bool    `expr:"start"`
	T     float64 `expr:"t"`
	Goal  float64 `expr:"goal"`
}

// Expression is a user-supplied per-state robustness margin, for example
// "goal - x" or "dead ? -1 : 200 - y". The trajectory's robustness is the
// minimum margin over all states.
type Expression struct {
	source  string
	goal    float64
	program *vm.Program
}

func NewExpression(source string, goal float64) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("requirement expression is empty")
	}
	program, err := expr.Compile(source, expr.Env(stateEnv{}))
	if err != nil {
		return nil, fmt.Errorf("compiling requirement %q: %w", source, err)
	}
	return &Expression{source: source, goal: goal, program: program}, nil
}

func (e *Expression) Name() string {
	return "always (" + e.source + " > 0)"
}

func (e *Expression) Evaluate(traj dynamo.Trajectory) (float64, error) {
	times, states := traj.Aligned()
	rob := math.Inf(1)
	for i, s := range states {
		out, err := expr.Run(e.program, stateEnv{
			X:     s.X,
			Y:     s.Y,
			Dead:  s.Dead,
			Start: s.Start,
			T:     times[i],
			Goal:  e.goal,
		})
		if err != nil {
			return 0, fmt.Errorf("evaluating requirement at t=%g: %w", times[i], err)
		}
		margin, err := toFloat(out)
		if err != nil {
			return 0, fmt.Errorf("requirement %q: %w", e.source, err)
		}
		rob = math.Min(rob, margin)
	}
	return rob, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return -1, nil
	default:
		return 0, fmt.Errorf("must evaluate to a number, got %T", v)
	}
}

// New selects the requirement: the expression when one is given, otherwise
// AlwaysBelow(goal).
func New(expression string, goal float64) (Specification, error) {
	if strings.TrimSpace(expression) == "" {
		return NewAlwaysBelow(goal), nil
	}
	return NewExpression(expression, goal)
}
