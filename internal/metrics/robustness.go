package metrics

import (
	"fmt"
	"math"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Specification scores a trajectory against a requirement. The result is a
// robustness value: negative means the requirement was violated, and lower
// is worse. Implementations must be safe for concurrent use.
type Specification interface {
	Name() string
	Evaluate(traj dynamo.Trajectory) (float64, error)
}

// AlwaysBelow is the requirement "always (x < Goal)". Its robustness is the
// smallest margin Goal - x over the trajectory, so reaching the goal makes it
// non-positive.
type AlwaysBelow struct {
	Goal float64
}

func NewAlwaysBelow(goal float64) AlwaysBelow {
	return AlwaysBelow{Goal: goal}
}

func (a AlwaysBelow) Name() string {
	return fmt.Sprintf("always (x < %g)", a.Goal)
}

// Evaluate returns +Inf for an empty trajectory, which holds vacuously.
func (a AlwaysBelow) Evaluate(traj dynamo.Trajectory) (float64, error) {
	_, states := traj.Aligned()
	rob := math.Inf(1)
	for _, s := range states {
		rob = math.Min(rob, a.Goal-s.X)
	}
	return rob, nil
}
