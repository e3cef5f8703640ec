package export

import (
	"fmt"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Label numbers every evaluation in flattened run order as "{n}.trace".
func Label(runs dynamo.RunCollection) []Labeled {
	evals := runs.Evaluations()
	out := make([]Labeled, len(evals))
	for n, e := range evals {
		out[n] = Labeled{Label: fmt.Sprintf("%d.trace", n), Trace: e.Trace}
	}
	return out
}
