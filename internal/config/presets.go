package config

import (
	"fmt"
	"sort"
)

// WinPositions holds the x position of the flagpole for each world the
// simulator ships with.
var WinPositions = map[int]float64{
	0: 3149,
	1: 160,
	2: 257,
	3: 416,
	4: 226,
}

func GoalFor(world int) (float64, error) {
	x, ok := WinPositions[world]
	if !ok {
		return 0, fmt.Errorf("no win position known for world %d", world)
	}
	return x, nil
}

type World struct {
	Index int
	Goal  float64
}

func ListWorlds() []World {
	worlds := make([]World, 0, len(WinPositions))
	for idx, goal := range WinPositions {
		worlds = append(worlds, World{Index: idx, Goal: goal})
	}
	sort.Slice(worlds, func(i, j int) bool { return worlds[i].Index < worlds[j].Index })
	return worlds
}

// Presets are named search settings applied over the defaults.
var Presets = map[string]SearchConfig{
	"smoke": {
		Optimizer: "uniform", ControlPoints: 10, Frames: 200, StepSize: 1,
		Budget: 10, Runs: 1, Parallel: 1,
	},
	"standard": {
		Optimizer: "annealing", ControlPoints: 100, Frames: 1000, StepSize: 1,
		Budget: 400, Runs: 1, Parallel: 1,
	},
	"thorough": {
		Optimizer: "annealing", ControlPoints: 100, Frames: 1000, StepSize: 1,
		Budget: 1000, Runs: 5, Parallel: 4,
	},
}

// GetPreset returns the defaults with the named search preset applied, or
// nil if there is no such preset.
func GetPreset(name string) *Config {
	search, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Search = search
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
