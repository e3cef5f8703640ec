package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Search.Budget != 400 || cfg.Search.ControlPoints != 100 || cfg.Search.Frames != 1000 {
		t.Errorf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Simulator.Timeout != time.Minute {
		t.Errorf("expected 1m timeout, got %s", cfg.Simulator.Timeout)
	}
	goal, err := cfg.GoalX()
	if err != nil || goal != 3149 {
		t.Errorf("expected world 0 goal 3149, got %v, %v", goal, err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taliro.yaml")
	data := `
world: 2
simulator:
  binary: /opt/smbc/smbc
  timeout: 90s
search:
  budget: 25
  runs: 3
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.World != 2 || cfg.Simulator.Binary != "/opt/smbc/smbc" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Simulator.Timeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %s", cfg.Simulator.Timeout)
	}
	if cfg.Search.Budget != 25 || cfg.Search.Runs != 3 {
		t.Errorf("search values not applied: %+v", cfg.Search)
	}
	if cfg.Search.ControlPoints != DefaultControlPoints || cfg.Simulator.DataDir != DefaultDataDir {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if goal, _ := cfg.GoalX(); goal != 257 {
		t.Errorf("expected world 2 goal 257, got %v", goal)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "world: 40\nsimulator:\n  format: xml\nsearch:\n  budget: 0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"format", "got 40", "budget"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q: %v", want, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.World = 4
	cfg.Requirement = "goal - x"
	cfg.Simulator.ReplayTimeout = 5 * time.Minute

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch\nwant %+v\ngot  %+v", cfg, loaded)
	}
}

func TestExplicitGoal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World = 20
	if err := cfg.Validate(); err != nil {
		t.Fatalf("world without preset should validate: %v", err)
	}
	if _, err := cfg.GoalX(); err == nil {
		t.Error("expected error for world without preset goal")
	}
	cfg.Goal = 1234
	if goal, _ := cfg.GoalX(); goal != 1234 {
		t.Errorf("expected explicit goal, got %v", goal)
	}
}

func TestGoalFor(t *testing.T) {
	tests := map[int]float64{0: 3149, 1: 160, 2: 257, 3: 416, 4: 226}
	for world, want := range tests {
		got, err := GoalFor(world)
		if err != nil || got != want {
			t.Errorf("world %d: expected %v, got %v (%v)", world, want, got, err)
		}
	}
	if _, err := GoalFor(5); err == nil {
		t.Error("expected error for unknown world")
	}
}

func TestListWorlds(t *testing.T) {
	worlds := ListWorlds()
	if len(worlds) != 5 {
		t.Fatalf("expected 5 worlds, got %d", len(worlds))
	}
	for i, w := range worlds {
		if w.Index != i {
			t.Errorf("expected sorted worlds, got %v", worlds)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("smoke")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Search.Budget != 10 || cfg.Search.Optimizer != "uniform" {
		t.Errorf("unexpected smoke preset %+v", cfg.Search)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("preset should validate: %v", err)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	if got := strings.Join(ListPresets(), ","); got != "smoke,standard,thorough" {
		t.Errorf("unexpected presets %s", got)
	}
}

func TestLoadOverPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taliro.yaml")
	data := "search:\n  budget: 33\n  seed: 9\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOver(path, GetPreset("thorough"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Search.Budget != 33 || cfg.Search.Seed != 9 {
		t.Errorf("file values not applied over preset: %+v", cfg.Search)
	}
	if cfg.Search.Runs != 5 || cfg.Search.Parallel != 4 {
		t.Errorf("preset values lost: %+v", cfg.Search)
	}
}
