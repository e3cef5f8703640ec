package control

import (
	"fmt"
	"math"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Normalize wraps an angle in degrees into [0, 360). NaN and infinities are
// returned unchanged.
func Normalize(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	// math.Mod can round a tiny negative up to exactly 360.
	if a >= 360 {
		a = 0
	}
	return a
}

// Encode maps a joystick angle in degrees to its command. Angles are wrapped
// into [0, 360) first; each quadrant is closed below and open above. NaN and
// infinities fall into the last quadrant.
func Encode(angle float64) dynamo.Command {
	a := Normalize(angle)
	switch {
	case a >= 0 && a < 90:
		return dynamo.Command00
	case a >= 90 && a < 180:
		return dynamo.Command01
	case a >= 180 && a < 270:
		return dynamo.Command10
	default:
		return dynamo.Command11
	}
}

// EncodeSequence encodes the joystick signal of every sample time in
// ascending time order.
func EncodeSequence(sample dynamo.Sample) (dynamo.CommandSequence, error) {
	times := sample.Times()
	seq := make(dynamo.CommandSequence, 0, len(times))
	for _, t := range times {
		angle, ok := sample[t][dynamo.JoystickSignal]
		if !ok {
			return nil, fmt.Errorf("sample at t=%g has no %q signal", t, dynamo.JoystickSignal)
		}
		seq = append(seq, Encode(angle))
	}
	return seq, nil
}
