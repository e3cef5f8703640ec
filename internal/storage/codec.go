package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

const (
	// FormatName tags every run file so foreign JSON is rejected early.
	FormatName = "ijon-taliro/runs"
	// SchemaVersion is bumped whenever the record layout changes.
	SchemaVersion = 1
)

type envelope struct {
	Format  string          `json:"format"`
	Version int             `json:"version"`
	Created time.Time       `json:"created"`
	Runs    json.RawMessage `json:"runs"`
}

type runRecord struct {
	ID          string              `json:"id"`
	Seed        int64               `json:"seed"`
	Optimizer   string              `json:"optimizer,omitempty"`
	Evaluations *[]evaluationRecord `json:"evaluations"`
}

type evaluationRecord struct {
	Cost    *cost        `json:"cost"`
	Trace   *traceRecord `json:"trace"`
	Model   []string     `json:"model"`
	Failure string       `json:"failure,omitempty"`
}

type traceRecord struct {
	Times  []float64     `json:"times"`
	States []stateRecord `json:"states"`
}

type stateRecord struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Dead  bool     `json:"dead,omitempty"`
	Start bool     `json:"start,omitempty"`
}

// cost is a float64 that survives JSON even when it is not finite; failed
// evaluations are stored with +Inf.
type cost float64

func (c cost) MarshalJSON() ([]byte, error) {
	f := float64(c)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (c *cost) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"NaN"`:
		*c = cost(math.NaN())
		return nil
	case `"+Inf"`:
		*c = cost(math.Inf(1))
		return nil
	case `"-Inf"`:
		*c = cost(math.Inf(-1))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("cost must be a number, got %s", data)
	}
	*c = cost(f)
	return nil
}

// Encode serializes a run collection into a versioned run file body.
func Encode(runs dynamo.RunCollection) ([]byte, error) {
	records := make([]runRecord, len(runs))
	for i, r := range runs {
		evals := make([]evaluationRecord, len(r.Evaluations))
		for j, e := range r.Evaluations {
			evals[j] = encodeEvaluation(e)
		}
		records[i] = runRecord{
			ID:          r.ID,
			Seed:        r.Seed,
			Optimizer:   r.Optimizer,
			Evaluations: &evals,
		}
	}

	body, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Format:  FormatName,
		Version: SchemaVersion,
		Created: time.Now().UTC(),
		Runs:    body,
	})
}

func encodeEvaluation(e dynamo.Evaluation) evaluationRecord {
	c := cost(e.Cost)
	tr := traceRecord{
		Times:  make([]float64, len(e.Trace.Times)),
		States: make([]stateRecord, len(e.Trace.States)),
	}
	copy(tr.Times, e.Trace.Times)
	for i, s := range e.Trace.States {
		x, y := s.X, s.Y
		tr.States[i] = stateRecord{X: &x, Y: &y, Dead: s.Dead, Start: s.Start}
	}
	model := make([]string, len(e.Model))
	for i, cmd := range e.Model {
		model[i] = string(cmd)
	}
	return evaluationRecord{Cost: &c, Trace: &tr, Model: model, Failure: e.Failure}
}

// Decode validates and decodes a run file body. Every rejection is a
// *dynamo.FormatError; files from another schema version also match
// dynamo.ErrSchemaVersion.
func Decode(path string, data []byte) (dynamo.RunCollection, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, &dynamo.FormatError{Path: path, Reason: "not a run file", Wrapped: err}
	}
	if env.Format != FormatName {
		return nil, &dynamo.FormatError{Path: path, Reason: fmt.Sprintf("unexpected format tag %q", env.Format)}
	}
	if env.Version != SchemaVersion {
		return nil, &dynamo.FormatError{
			Path:    path,
			Version: env.Version,
			Reason:  fmt.Sprintf("written by schema version %d, expected %d", env.Version, SchemaVersion),
			Wrapped: dynamo.ErrSchemaVersion,
		}
	}

	body := bytes.TrimSpace(env.Runs)
	if len(body) == 0 || body[0] != '[' {
		return nil, &dynamo.FormatError{Path: path, Version: env.Version, Reason: "runs is not a list"}
	}

	var records []runRecord
	if err := strictUnmarshal(body, &records); err != nil {
		return nil, &dynamo.FormatError{Path: path, Version: env.Version, Reason: "runs are not run records", Wrapped: err}
	}

	runs := make(dynamo.RunCollection, len(records))
	for i, rec := range records {
		run, err := decodeRun(rec)
		if err != nil {
			return nil, &dynamo.FormatError{
				Path:    path,
				Version: env.Version,
				Reason:  fmt.Sprintf("run %d: %v", i, err),
			}
		}
		runs[i] = run
	}
	return runs, nil
}

func decodeRun(rec runRecord) (dynamo.Run, error) {
	if rec.Evaluations == nil {
		return dynamo.Run{}, errors.New("evaluations is not a list")
	}
	evals := make([]dynamo.Evaluation, len(*rec.Evaluations))
	for j, er := range *rec.Evaluations {
		e, err := decodeEvaluation(er)
		if err != nil {
			return dynamo.Run{}, fmt.Errorf("evaluation %d: %w", j, err)
		}
		evals[j] = e
	}
	return dynamo.Run{ID: rec.ID, Seed: rec.Seed, Optimizer: rec.Optimizer, Evaluations: evals}, nil
}

func decodeEvaluation(er evaluationRecord) (dynamo.Evaluation, error) {
	if er.Cost == nil {
		return dynamo.Evaluation{}, errors.New("missing cost")
	}
	if er.Trace == nil {
		return dynamo.Evaluation{}, errors.New("missing trace")
	}
	if er.Model == nil {
		return dynamo.Evaluation{}, errors.New("missing model")
	}

	states := make([]dynamo.State, len(er.Trace.States))
	for k, s := range er.Trace.States {
		if s.X == nil || s.Y == nil {
			return dynamo.Evaluation{}, fmt.Errorf("state %d is missing x or y", k)
		}
		states[k] = dynamo.State{X: *s.X, Y: *s.Y, Dead: s.Dead, Start: s.Start}
	}
	times := er.Trace.Times
	if times == nil {
		times = []float64{}
	}

	model := make(dynamo.CommandSequence, len(er.Model))
	for k, tok := range er.Model {
		c := dynamo.Command(tok)
		if !c.Valid() {
			return dynamo.Evaluation{}, fmt.Errorf("command %d: unknown token %q", k, tok)
		}
		model[k] = c
	}

	return dynamo.Evaluation{
		Cost:    float64(*er.Cost),
		Trace:   dynamo.Trajectory{Times: times, States: states},
		Model:   model,
		Failure: er.Failure,
	}, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}
