package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors. Each failure the harness can report maps to exactly one of
// these so batch runs can tell evaluations apart by cause.
var (
	// ErrSimulationFailure indicates the simulator could not be started, exited
	// non-zero, or timed out.
	ErrSimulationFailure = errors.New("dynamo: simulation failure")

	// ErrTimeout is the sub-reason for a simulator that exceeded its deadline.
	ErrTimeout = errors.New("dynamo: simulator timed out")

	// ErrMalformedTrajectoryLine indicates a recognized data line that could not be decoded.
	ErrMalformedTrajectoryLine = errors.New("dynamo: malformed trajectory line")

	// ErrNotFound indicates a run file that does not exist.
	ErrNotFound = errors.New("dynamo: run file not found")

	// ErrInvalidFormat indicates a run file whose contents are not a run collection.
	ErrInvalidFormat = errors.New("dynamo: invalid run file format")

	// ErrSchemaVersion indicates a run file written by an incompatible revision.
	ErrSchemaVersion = errors.New("dynamo: unsupported run file version")

	// ErrEmptyCollection indicates there were no evaluations to select from.
	ErrEmptyCollection = errors.New("dynamo: no evaluations in collection")

	// ErrTemplateNotFound indicates the SVG template could not be read.
	ErrTemplateNotFound = errors.New("dynamo: template not found")

	// ErrPlaceholderMissing indicates the template has no placeholder token.
	ErrPlaceholderMissing = errors.New("dynamo: template placeholder missing")

	// ErrWriteFailure indicates an output artifact could not be written.
	ErrWriteFailure = errors.New("dynamo: write failure")
)

// FailureReason classifies a SimulationError.
type FailureReason string

const (
	ReasonStart   FailureReason = "start"
	ReasonExit    FailureReason = "exit"
	ReasonTimeout FailureReason = "timeout"
)

// SimulationError describes a failed simulator invocation.
type SimulationError struct {
	World    int
	Mode     string
	Reason   FailureReason
	ExitCode int
	Stderr   string
	Wrapped  error
}

func (e *SimulationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "simulation failure (world %d, %s mode): ", e.World, e.Mode)
	switch e.Reason {
	case ReasonExit:
		fmt.Fprintf(&b, "exit status %d", e.ExitCode)
	case ReasonTimeout:
		b.WriteString("timed out")
	default:
		b.WriteString(string(e.Reason))
	}
	if e.Wrapped != nil && e.Reason == ReasonStart {
		fmt.Fprintf(&b, ": %v", e.Wrapped)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *SimulationError) Unwrap() []error {
	errs := []error{ErrSimulationFailure}
	if e.Reason == ReasonTimeout {
		errs = append(errs, ErrTimeout)
	}
	if e.Wrapped != nil {
		errs = append(errs, e.Wrapped)
	}
	return errs
}

// LineError reports the simulator output line that failed to decode.
type LineError struct {
	Line    int
	Text    string
	Wrapped error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Wrapped)
}

func (e *LineError) Unwrap() []error {
	return []error{ErrMalformedTrajectoryLine, e.Wrapped}
}

// FormatError reports why a run file was rejected.
type FormatError struct {
	Path    string
	Version int
	Reason  string
	Wrapped error
}

func (e *FormatError) Error() string {
	if e.Version != 0 {
		return fmt.Sprintf("%s: %s (version %d)", e.Path, e.Reason, e.Version)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() []error {
	errs := []error{ErrInvalidFormat}
	if e.Wrapped != nil {
		errs = append(errs, e.Wrapped)
	}
	return errs
}
