package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Format selects which simulator output protocol to parse.
type Format string

const (
	// FormatJSON is one {"x":..,"y":..,"dead":..,"start":..} object per data line.
	FormatJSON Format = "json"
	// FormatCSV is one "x,y" pair per data line.
	FormatCSV Format = "csv"
)

// ParseFormat resolves a format name; the empty string selects FormatJSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown trace format: %s", name)
	}
}

// Recognize reports whether a line is a data line in the given format. It
// only looks at the shape of the line; it never decodes it.
func Recognize(f Format, line string) bool {
	switch f {
	case FormatCSV:
		return strings.Contains(line, ",")
	default:
		return strings.HasPrefix(line, "{")
	}
}

// Decode turns one recognized data line into a State.
func Decode(f Format, line string) (dynamo.State, error) {
	switch f {
	case FormatCSV:
		return decodeCSV(line)
	default:
		return decodeJSON(line)
	}
}

// Parse filters simulator output down to data lines and decodes each one.
// Non-data lines are dropped. A data line that fails to decode aborts the
// parse with a *dynamo.LineError.
func Parse(f Format, lines []string) ([]dynamo.State, error) {
	states := make([]dynamo.State, 0, len(lines))
	for i, line := range lines {
		if !Recognize(f, line) {
			continue
		}
		s, err := Decode(f, line)
		if err != nil {
			return nil, &dynamo.LineError{Line: i + 1, Text: line, Wrapped: err}
		}
		states = append(states, s)
	}
	return states, nil
}

// ParseOutput splits raw stdout into lines and parses them. Lines of any
// length are accepted.
func ParseOutput(f Format, out []byte) ([]dynamo.State, error) {
	return Parse(f, splitLines(out))
}

// Lines reads r into lines without their terminators. Carriage returns from
// CRLF output are stripped.
func Lines(r io.Reader) ([]string, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading simulator output: %w", err)
	}
	return splitLines(out), nil
}

func splitLines(out []byte) []string {
	if len(out) == 0 {
		return nil
	}
	raw := bytes.Split(out, []byte{'\n'})
	if len(raw[len(raw)-1]) == 0 {
		raw = raw[:len(raw)-1]
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(bytes.TrimSuffix(l, []byte{'\r'}))
	}
	return lines
}

type record struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Dead  flag     `json:"dead"`
	Start flag     `json:"start"`
}

// flag accepts the simulator's 0/1 integers as well as JSON booleans.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("flag must be 0, 1 or a boolean, got %s", data)
	}
	*f = n == 1
	return nil
}

func decodeJSON(line string) (dynamo.State, error) {
	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return dynamo.State{}, err
	}
	if rec.X == nil || rec.Y == nil {
		return dynamo.State{}, errors.New("record is missing x or y")
	}
	if err := finite(*rec.X, *rec.Y); err != nil {
		return dynamo.State{}, err
	}
	return dynamo.State{
		X:     *rec.X,
		Y:     *rec.Y,
		Dead:  bool(rec.Dead),
		Start: bool(rec.Start),
	}, nil
}

func decodeCSV(line string) (dynamo.State, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return dynamo.State{}, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return dynamo.State{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return dynamo.State{}, fmt.Errorf("y: %w", err)
	}
	if err := finite(x, y); err != nil {
		return dynamo.State{}, err
	}
	return dynamo.State{X: x, Y: y}, nil
}

// finite rejects NaN and infinite coordinates, which can be neither stored
// nor drawn.
func finite(x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("coordinates must be finite, got (%g, %g)", x, y)
	}
	return nil
}
