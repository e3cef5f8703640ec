package optim

import (
	"fmt"
	"math"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// SignalInput declares one input signal as a list of control points, each
// with its own range.
type SignalInput struct {
	Name          string
	ControlPoints []Interval
}

// UniformSignal declares n control points sharing one range.
func UniformSignal(name string, n int, iv Interval) SignalInput {
	cps := make([]Interval, n)
	for i := range cps {
		cps[i] = iv
	}
	return SignalInput{Name: name, ControlPoints: cps}
}

// Span is the time window sampled by the simulator, End exclusive.
type Span struct {
	Start float64
	End   float64
}

// Times returns Start, Start+step, ... up to but excluding End.
func (s Span) Times(step float64) []float64 {
	if step <= 0 || s.End <= s.Start {
		return nil
	}
	n := int(math.Ceil((s.End-s.Start)/step - 1e-9))
	times := make([]float64, n)
	for i := range times {
		times[i] = s.Start + float64(i)*step
	}
	return times
}

// Sampler turns an optimizer's decision vector into a Sample by piecewise
// linear interpolation between control points spread evenly over the span.
type Sampler struct {
	Signals  []SignalInput
	Span     Span
	StepSize float64
}

// Bounds concatenates every signal's control point ranges in declaration
// order; decision vectors are laid out the same way.
func (s Sampler) Bounds() []Interval {
	var out []Interval
	for _, sig := range s.Signals {
		out = append(out, sig.ControlPoints...)
	}
	return out
}

func (s Sampler) Sample(x []float64) (dynamo.Sample, error) {
	if want := len(s.Bounds()); len(x) != want {
		return nil, fmt.Errorf("optim: expected %d control point values, got %d", want, len(x))
	}

	times := s.Span.Times(s.StepSize)
	sample := make(dynamo.Sample, len(times))
	for _, t := range times {
		sample[t] = make(dynamo.Signals, len(s.Signals))
	}

	offset := 0
	for _, sig := range s.Signals {
		values := x[offset : offset+len(sig.ControlPoints)]
		offset += len(sig.ControlPoints)
		for _, t := range times {
			sample[t][sig.Name] = interpolate(values, s.Span, t)
		}
	}
	return sample, nil
}

func interpolate(values []float64, span Span, t float64) float64 {
	n := len(values)
	switch n {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	pos := (t - span.Start) / (span.End - span.Start) * float64(n-1)
	if pos <= 0 {
		return values[0]
	}
	if pos >= float64(n-1) {
		return values[n-1]
	}
	i := int(pos)
	frac := pos - float64(i)
	return values[i] + frac*(values[i+1]-values[i])
}
