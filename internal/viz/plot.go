package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// TrajectoryPlot charts x position against sample index. It returns an
// empty string for an empty trajectory.
func TrajectoryPlot(traj dynamo.Trajectory, width, height int) string {
	_, states := traj.Aligned()
	if len(states) == 0 {
		return ""
	}
	xs := make([]float64, len(states))
	for i, s := range states {
		xs[i] = s.X
	}
	return asciigraph.Plot(xs,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("x position"),
	)
}

// BestSoFar returns the running minimum of the finite costs. Evaluations
// before the first finite cost are dropped.
func BestSoFar(evals []dynamo.Evaluation) []float64 {
	out := make([]float64, 0, len(evals))
	best := math.Inf(1)
	for _, e := range evals {
		if !math.IsInf(e.Cost, 0) && !math.IsNaN(e.Cost) && e.Cost < best {
			best = e.Cost
		}
		if !math.IsInf(best, 1) {
			out = append(out, best)
		}
	}
	return out
}

// CostHistory charts BestSoFar for one run.
func CostHistory(evals []dynamo.Evaluation, width, height int) string {
	data := BestSoFar(evals)
	if len(data) == 0 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("best cost"),
	)
}

// Summary renders a panel describing one evaluation: cost, trajectory
// length and final position.
func Summary(title string, e dynamo.Evaluation) string {
	var b strings.Builder
	b.WriteString(Title.Render(title) + "\n\n")

	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-10s", label)) + " " + value + "\n")
	}

	row("cost", CostStyle(e.Cost, e.Failed()).Render(fmt.Sprintf("%g", e.Cost)))
	_, states := e.Trace.Aligned()
	row("states", MetricValue.Render(fmt.Sprintf("%d / %d", len(states), len(e.Trace.Times))))
	row("commands", MetricValue.Render(fmt.Sprintf("%d", len(e.Model))))
	if n := len(states); n > 0 {
		last := states[n-1]
		pos := fmt.Sprintf("x=%g y=%g", last.X, last.Y)
		if last.Dead {
			pos += " " + StatusFalsified.Render("dead")
		}
		row("last", MetricValue.Render(pos))
	}
	if e.Failed() {
		row("failure", StatusFailed.Render(e.Failure))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}
