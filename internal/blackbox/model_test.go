package blackbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/trace"
)

const echoSimulator = `#!/bin/sh
test -f level.dat || { echo "missing assets" >&2; exit 3; }
echo "log: world $1 mode $2"
n=0
while IFS= read -r line; do
  n=$((n+1))
  echo "{\"x\":$n,\"y\":$((n*2)),\"dead\":0,\"start\":0}"
done
echo "log: done"
`

type fixture struct {
	dataDir string
	tempDir string
	binary  string
}

func newFixture(t *testing.T, script string) fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub simulators require a POSIX shell")
	}

	root := t.TempDir()
	f := fixture{
		dataDir: filepath.Join(root, "data"),
		tempDir: filepath.Join(root, "channels"),
		binary:  filepath.Join(root, "smbc"),
	}
	for _, dir := range []string{f.dataDir, f.tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(f.dataDir, "level.dat"), []byte("assets"), 0644); err != nil {
		t.Fatalf("write assets failed: %v", err)
	}
	if err := os.WriteFile(f.binary, []byte(script), 0755); err != nil {
		t.Fatalf("write stub failed: %v", err)
	}
	return f
}

func (f fixture) model(t *testing.T, mutate func(*Config)) *Model {
	t.Helper()
	cfg := Config{
		Binary:  f.binary,
		DataDir: f.dataDir,
		World:   0,
		Format:  trace.FormatJSON,
		Timeout: 5 * time.Second,
		TempDir: f.tempDir,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new model failed: %v", err)
	}
	return m
}

func (f fixture) assertNoChannels(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	if err != nil {
		t.Fatalf("read temp dir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected transient channels to be removed, found %d", len(entries))
	}
}

func sample(angles ...float64) dynamo.Sample {
	s := make(dynamo.Sample, len(angles))
	for i, a := range angles {
		s[float64(i)] = dynamo.Signals{dynamo.JoystickSignal: a}
	}
	return s
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t, echoSimulator)
	m := f.model(t, nil)

	traj, seq, err := m.Evaluate(context.Background(), sample(10, 100, 200, 300))
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	want := dynamo.CommandSequence{"0,0", "0,1", "1,0", "1,1"}
	if len(seq) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(seq))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], seq[i])
		}
	}

	if len(traj.States) != 4 || len(traj.Times) != 4 {
		t.Fatalf("expected 4 states and times, got %d and %d", len(traj.States), len(traj.Times))
	}
	if traj.States[3].X != 4 || traj.States[3].Y != 8 {
		t.Errorf("unexpected last state %+v", traj.States[3])
	}
	for i, tm := range traj.Times {
		if tm != float64(i) {
			t.Errorf("time %d: expected %v, got %v", i, float64(i), tm)
		}
	}

	f.assertNoChannels(t)
}

func TestEvaluateWritesNewlineTerminatedStream(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "stdin.txt")
	t.Setenv("STUB_CAPTURE", capture)

	f := newFixture(t, "#!/bin/sh\ncat > \"$STUB_CAPTURE\"\n")
	m := f.model(t, nil)

	if _, _, err := m.Evaluate(context.Background(), sample(0, 95, 359)); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	got, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read capture failed: %v", err)
	}
	if string(got) != "0,0\n0,1\n1,1\n" {
		t.Errorf("unexpected stdin %q", got)
	}
}

func TestEvaluateNonZeroExit(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho '{\"x\":1,\"y\":1}'\necho 'segfault' >&2\nexit 7\n")
	m := f.model(t, nil)

	traj, seq, err := m.Evaluate(context.Background(), sample(10, 20))
	if !errors.Is(err, dynamo.ErrSimulationFailure) {
		t.Fatalf("expected ErrSimulationFailure, got %v", err)
	}
	if errors.Is(err, dynamo.ErrMalformedTrajectoryLine) {
		t.Error("simulation failure must not look like a parse error")
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Reason != dynamo.ReasonExit || simErr.ExitCode != 7 {
		t.Errorf("expected exit reason with code 7, got %s/%d", simErr.Reason, simErr.ExitCode)
	}
	if !strings.Contains(simErr.Stderr, "segfault") {
		t.Errorf("expected stderr to be captured, got %q", simErr.Stderr)
	}

	if len(traj.States) != 0 || seq != nil {
		t.Error("expected no partial trajectory on failure")
	}

	f.assertNoChannels(t)
}

func TestEvaluateTimeout(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\nexec sleep 10\n")
	m := f.model(t, func(c *Config) { c.Timeout = 200 * time.Millisecond })

	start := time.Now()
	_, _, err := m.Evaluate(context.Background(), sample(10))
	if !errors.Is(err, dynamo.ErrSimulationFailure) || !errors.Is(err, dynamo.ErrTimeout) {
		t.Fatalf("expected timeout simulation failure, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the simulator promptly")
	}

	f.assertNoChannels(t)
}

func TestEvaluateCanceledContext(t *testing.T) {
	f := newFixture(t, echoSimulator)
	m := f.model(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Evaluate(ctx, sample(10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	f.assertNoChannels(t)
}

func TestEvaluateMissingBinary(t *testing.T) {
	f := newFixture(t, echoSimulator)
	m := f.model(t, func(c *Config) { c.Binary = filepath.Join(f.dataDir, "does-not-exist") })

	_, _, err := m.Evaluate(context.Background(), sample(10))
	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) || simErr.Reason != dynamo.ReasonStart {
		t.Fatalf("expected start failure, got %v", err)
	}
	f.assertNoChannels(t)
}

func TestEvaluateMalformedOutput(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho '{\"x\":1,\"y\":1}'\necho '{\"x\":'\n")
	m := f.model(t, nil)

	_, _, err := m.Evaluate(context.Background(), sample(10, 20))
	if !errors.Is(err, dynamo.ErrMalformedTrajectoryLine) {
		t.Fatalf("expected ErrMalformedTrajectoryLine, got %v", err)
	}
	if errors.Is(err, dynamo.ErrSimulationFailure) {
		t.Error("parse error must not look like a simulation failure")
	}
	f.assertNoChannels(t)
}

func TestEvaluateEarlyTermination(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho '{\"x\":1,\"y\":1}'\necho '{\"x\":2,\"y\":1,\"dead\":1}'\n")
	m := f.model(t, nil)

	traj, _, err := m.Evaluate(context.Background(), sample(10, 20, 30, 40, 50))
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !traj.Truncated() {
		t.Error("expected truncated trajectory")
	}
	times, states := traj.Aligned()
	if len(times) != 2 || len(states) != 2 {
		t.Errorf("expected 2 aligned pairs, got %d/%d", len(times), len(states))
	}
	if !states[1].Dead {
		t.Error("expected dead flag on last state")
	}
}

func TestEvaluateCSVFormat(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho 'frame'\necho '40,176'\necho '41.5,170'\n")
	m := f.model(t, func(c *Config) { c.Format = trace.FormatCSV })

	traj, _, err := m.Evaluate(context.Background(), sample(10, 20))
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(traj.States) != 2 || traj.States[1].X != 41.5 {
		t.Errorf("unexpected states %+v", traj.States)
	}
}

func TestEvaluateConcurrentCallsUseDistinctChannels(t *testing.T) {
	f := newFixture(t, echoSimulator)
	m := f.model(t, nil)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			angles := make([]float64, n+1)
			traj, _, err := m.Evaluate(context.Background(), sample(angles...))
			if err == nil && len(traj.States) != n+1 {
				err = errors.New("state count does not match command count")
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent evaluate failed: %v", err)
		}
	}
	f.assertNoChannels(t)
}

func TestReplay(t *testing.T) {
	f := newFixture(t, "#!/bin/sh\necho \"mode=$2 world=$1\"\necho \"lines=$(wc -l | tr -d ' ')\"\n")
	var out bytes.Buffer
	m := f.model(t, func(c *Config) {
		c.World = 3
		c.ReplayOutput = &out
	})

	if err := m.Replay(context.Background(), dynamo.CommandSequence{"0,1", "0,1", "1,1"}); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "mode=video world=3") {
		t.Errorf("expected video mode invocation, got %q", got)
	}
	if !strings.Contains(got, "lines=3") {
		t.Errorf("expected three command lines to reach the simulator, got %q", got)
	}
	f.assertNoChannels(t)
}

func TestNewValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no binary", Config{DataDir: dir}},
		{"no data dir", Config{Binary: "smbc"}},
		{"missing data dir", Config{Binary: "smbc", DataDir: filepath.Join(dir, "nope")}},
		{"negative world", Config{Binary: "smbc", DataDir: dir, World: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
