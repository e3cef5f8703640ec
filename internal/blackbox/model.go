package blackbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jhu066/ijon-taliro/internal/control"
	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/trace"
)

// Mode is the simulator's second positional argument.
type Mode string

const (
	ModeTrace Mode = "trace"
	ModeVideo Mode = "video"
)

const (
	DefaultTimeout = 60 * time.Second
	waitDelay      = 2 * time.Second
	stderrTail     = 512
)

type Config struct {
	// Binary is the simulator executable. Relative paths are resolved
	// against the current directory when the model is built.
	Binary string
	// DataDir is the simulator's working directory; it loads its assets
	// relative to it.
	DataDir string
	World   int
	Format  trace.Format
	// Timeout bounds one trace-mode run. Zero selects DefaultTimeout; a
	// negative value disables the limit.
	Timeout time.Duration
	// ReplayTimeout bounds a video-mode run. Zero means no limit.
	ReplayTimeout time.Duration
	// TempDir holds the transient command files. Empty selects os.TempDir.
	TempDir string
	// ReplayOutput receives the simulator's stdout in video mode. Nil
	// discards it.
	ReplayOutput io.Writer
}

// Model runs the simulator as a black box: commands in, trajectory out.
// A Model holds no per-call state and is safe for concurrent use.
type Model struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Model, error) {
	if cfg.Binary == "" {
		return nil, errors.New("blackbox: simulator binary is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("blackbox: simulator data directory is required")
	}
	if cfg.World < 0 {
		return nil, fmt.Errorf("blackbox: world must be non-negative, got %d", cfg.World)
	}

	bin, err := filepath.Abs(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("blackbox: resolving binary: %w", err)
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("blackbox: resolving data dir: %w", err)
	}
	if info, err := os.Stat(dataDir); err != nil {
		return nil, fmt.Errorf("blackbox: data dir: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("blackbox: data dir %s is not a directory", dataDir)
	}
	cfg.Binary = bin
	cfg.DataDir = dataDir

	if cfg.Format == "" {
		cfg.Format = trace.FormatJSON
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReplayOutput == nil {
		cfg.ReplayOutput = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Model{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "blackbox"), slog.Int("world", cfg.World)),
	}, nil
}

func (m *Model) Config() Config { return m.cfg }

// Evaluate encodes the sample, runs the simulator in trace mode and parses
// its output. The returned command sequence is the one the simulator read
// and can be passed to Replay. No trajectory is returned on error.
func (m *Model) Evaluate(ctx context.Context, sample dynamo.Sample) (dynamo.Trajectory, dynamo.CommandSequence, error) {
	seq, err := control.EncodeSequence(sample)
	if err != nil {
		return dynamo.Trajectory{}, nil, err
	}

	start := time.Now()
	var stdout bytes.Buffer
	if err := m.run(ctx, ModeTrace, seq, &stdout, m.cfg.Timeout); err != nil {
		return dynamo.Trajectory{}, nil, err
	}

	states, err := trace.ParseOutput(m.cfg.Format, stdout.Bytes())
	if err != nil {
		return dynamo.Trajectory{}, nil, err
	}

	traj := dynamo.Trajectory{Times: sample.Times(), States: states}
	m.logger.Debug("evaluation finished",
		slog.Int("commands", len(seq)),
		slog.Int("states", len(states)),
		slog.Bool("truncated", traj.Truncated()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return traj, seq, nil
}

// Replay feeds a stored command sequence to the simulator in video mode for
// visible playback. Output is not parsed.
func (m *Model) Replay(ctx context.Context, seq dynamo.CommandSequence) error {
	m.logger.Info("replaying command sequence", slog.Int("commands", len(seq)))
	return m.run(ctx, ModeVideo, seq, m.cfg.ReplayOutput, m.cfg.ReplayTimeout)
}

func (m *Model) run(ctx context.Context, mode Mode, seq dynamo.CommandSequence, stdout io.Writer, timeout time.Duration) error {
	input, release, err := openChannel(m.cfg.TempDir, control.Serialize(seq))
	if err != nil {
		return err
	}
	defer release()

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, m.cfg.Binary, strconv.Itoa(m.cfg.World), string(mode))
	cmd.Dir = m.cfg.DataDir
	cmd.Stdin = input
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	m.logger.Debug("starting simulator",
		slog.String("mode", string(mode)),
		slog.String("input", input.Name()),
		slog.Int("commands", len(seq)),
	)

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	simErr := &dynamo.SimulationError{
		World:  m.cfg.World,
		Mode:   string(mode),
		Stderr: tail(stderr.Bytes(), stderrTail),
	}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		simErr.Reason = dynamo.ReasonTimeout
	case errors.As(runErr, &exitErr):
		simErr.Reason = dynamo.ReasonExit
		simErr.ExitCode = exitErr.ExitCode()
	default:
		simErr.Reason = dynamo.ReasonStart
		simErr.Wrapped = runErr
	}
	m.logger.Debug("simulator failed", slog.String("mode", string(mode)), slog.String("error", simErr.Error()))
	return simErr
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
