package dynamo

import (
	"math"
	"sort"
)

// Signals holds the named signal values proposed for one time index.
type Signals map[string]float64

// JoystickSignal is the signal name carrying the joystick angle in degrees.
const JoystickSignal = "joystick"

// Sample maps a time index to the signal values at that time.
type Sample map[float64]Signals

// Times returns the time indices of the sample in ascending order.
func (s Sample) Times() []float64 {
	times := make([]float64, 0, len(s))
	for t := range s {
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// Command is one of the four directional tokens understood by the simulator.
type Command string

// The two characters are the high and low bit of the direction quadrant.
const (
	Command00 Command = "0,0"
	Command01 Command = "0,1"
	Command10 Command = "1,0"
	Command11 Command = "1,1"
)

// Commands lists every valid command in encoding order.
var Commands = [4]Command{Command00, Command01, Command10, Command11}

func (c Command) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// CommandSequence is the ordered command stream fed to the simulator, one
// entry per sample time.
type CommandSequence []Command

func (s CommandSequence) Clone() CommandSequence {
	c := make(CommandSequence, len(s))
	copy(c, s)
	return c
}

// State is one position record reported by the simulator.
type State struct {
	X     float64
	Y     float64
	Dead  bool
	Start bool
}

// IsSentinel reports whether the state is the simulator's placeholder
// position, which is kept in trajectories but never drawn.
func (s State) IsSentinel() bool {
	return s.X == 0 && s.Y == 0
}

// Trajectory pairs sample times with simulator states by position. The
// simulator may stop early, so States can be shorter than Times.
type Trajectory struct {
	Times  []float64
	States []State
}

// Len returns the number of aligned (time, state) pairs.
func (t Trajectory) Len() int {
	if len(t.States) < len(t.Times) {
		return len(t.States)
	}
	return len(t.Times)
}

// Truncated reports whether the simulator produced fewer states than there
// were sample times.
func (t Trajectory) Truncated() bool {
	return len(t.States) < len(t.Times)
}

// Aligned returns times and states truncated to the shorter of the two.
func (t Trajectory) Aligned() ([]float64, []State) {
	n := t.Len()
	return t.Times[:n], t.States[:n]
}

// Evaluation is one scored simulator run. Lower cost means closer to
// violating the requirement.
type Evaluation struct {
	Cost    float64
	Trace   Trajectory
	Model   CommandSequence
	Failure string
}

// Failed reports whether the evaluation records a simulator or parse failure.
func (e Evaluation) Failed() bool {
	return e.Failure != ""
}

// Falsified reports whether the evaluation violated the requirement.
func (e Evaluation) Falsified() bool {
	return !e.Failed() && e.Cost < 0
}

// Run is one optimizer trial; evaluations are kept in evaluation order.
type Run struct {
	ID          string
	Seed        int64
	Optimizer   string
	Evaluations []Evaluation
}

// Best returns the index of the lowest-cost evaluation, or -1 if the run is
// empty.
func (r Run) Best() int {
	best := -1
	for i, e := range r.Evaluations {
		if best < 0 || Less(e.Cost, r.Evaluations[best].Cost) {
			best = i
		}
	}
	return best
}

// Failures counts evaluations that ended in a failure.
func (r Run) Failures() int {
	n := 0
	for _, e := range r.Evaluations {
		if e.Failed() {
			n++
		}
	}
	return n
}

// RunCollection is the top-level persisted artifact.
type RunCollection []Run

// Evaluations flattens every run's evaluations in run order.
func (c RunCollection) Evaluations() []Evaluation {
	n := 0
	for _, r := range c {
		n += len(r.Evaluations)
	}
	out := make([]Evaluation, 0, n)
	for _, r := range c {
		out = append(out, r.Evaluations...)
	}
	return out
}

// Less orders costs ascending with NaN after every number.
func Less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}
