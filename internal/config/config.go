package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBinary        = "build/smbc"
	DefaultDataDir       = "data"
	DefaultTimeout       = 60 * time.Second
	DefaultFormat        = "json"
	DefaultOptimizer     = "annealing"
	DefaultControlPoints = 100
	DefaultFrames        = 1000
	DefaultStepSize      = 1.0
	DefaultBudget        = 400
	DefaultRuns          = 1
	DefaultTemplate      = "data/mario-1-1.svg"
	DefaultSVGOutput     = "mario-1-1.svg"
	DefaultInputsDir     = "inputs"
	DefaultOutputsDir    = "outputs"
	MaxWorld             = 36
)

type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	World     int             `yaml:"world"`
	// Goal is the x position the requirement guards. Zero selects the
	// world's preset win position.
	Goal float64 `yaml:"goal,omitempty"`
	// Requirement is an optional per-state margin expression replacing
	// "goal - x".
	Requirement string       `yaml:"requirement,omitempty"`
	Search      SearchConfig `yaml:"search"`
	Export      ExportConfig `yaml:"export"`
}

type SimulatorConfig struct {
	Binary        string        `yaml:"binary"`
	DataDir       string        `yaml:"data_dir"`
	Timeout       time.Duration `yaml:"timeout"`
	ReplayTimeout time.Duration `yaml:"replay_timeout"`
	Format        string        `yaml:"format"`
}

type SearchConfig struct {
	Optimizer           string  `yaml:"optimizer"`
	ControlPoints       int     `yaml:"control_points"`
	Frames              int     `yaml:"frames"`
	StepSize            float64 `yaml:"step_size"`
	Budget              int     `yaml:"budget"`
	Runs                int     `yaml:"runs"`
	Parallel            int     `yaml:"parallel"`
	Seed                int64   `yaml:"seed"`
	StopOnFalsification bool    `yaml:"stop_on_falsification"`
}

type ExportConfig struct {
	Template    string  `yaml:"template"`
	Output      string  `yaml:"output"`
	Stroke      string  `yaml:"stroke"`
	Opacity     float64 `yaml:"opacity"`
	StrokeWidth float64 `yaml:"stroke_width"`
	InputsDir   string  `yaml:"inputs_dir"`
	OutputsDir  string  `yaml:"outputs_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			Binary:  DefaultBinary,
			DataDir: DefaultDataDir,
			Timeout: DefaultTimeout,
			Format:  DefaultFormat,
		},
		Search: SearchConfig{
			Optimizer:     DefaultOptimizer,
			ControlPoints: DefaultControlPoints,
			Frames:        DefaultFrames,
			StepSize:      DefaultStepSize,
			Budget:        DefaultBudget,
			Runs:          DefaultRuns,
			Parallel:      1,
		},
		Export: ExportConfig{
			Template:    DefaultTemplate,
			Output:      DefaultSVGOutput,
			Stroke:      "#f8bf00",
			Opacity:     0.2,
			StrokeWidth: 3,
			InputsDir:   DefaultInputsDir,
			OutputsDir:  DefaultOutputsDir,
		},
	}
}

// Load reads a YAML file over the defaults, so a file only needs the keys
// it changes.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which is modified in place. Keys
// absent from the file keep base's values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Simulator.Binary == "" {
		errs = append(errs, errors.New("simulator.binary is required"))
	}
	if c.Simulator.DataDir == "" {
		errs = append(errs, errors.New("simulator.data_dir is required"))
	}
	if c.Simulator.Timeout < 0 {
		errs = append(errs, fmt.Errorf("simulator.timeout must not be negative, got %s", c.Simulator.Timeout))
	}
	switch c.Simulator.Format {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("simulator.format must be json or csv, got %q", c.Simulator.Format))
	}
	if c.World < 0 || c.World > MaxWorld {
		errs = append(errs, fmt.Errorf("world must be in [0, %d], got %d", MaxWorld, c.World))
	}
	if c.Search.ControlPoints < 1 {
		errs = append(errs, fmt.Errorf("search.control_points must be positive, got %d", c.Search.ControlPoints))
	}
	if c.Search.Frames < 1 {
		errs = append(errs, fmt.Errorf("search.frames must be positive, got %d", c.Search.Frames))
	}
	if c.Search.StepSize <= 0 {
		errs = append(errs, fmt.Errorf("search.step_size must be positive, got %g", c.Search.StepSize))
	}
	if c.Search.Budget < 1 {
		errs = append(errs, fmt.Errorf("search.budget must be positive, got %d", c.Search.Budget))
	}
	if c.Search.Runs < 1 {
		errs = append(errs, fmt.Errorf("search.runs must be positive, got %d", c.Search.Runs))
	}
	if c.Search.Parallel < 0 {
		errs = append(errs, fmt.Errorf("search.parallel must not be negative, got %d", c.Search.Parallel))
	}
	return errors.Join(errs...)
}

// GoalX returns the configured goal, falling back to the world preset.
func (c *Config) GoalX() (float64, error) {
	if c.Goal != 0 {
		return c.Goal, nil
	}
	goal, err := GoalFor(c.World)
	if err != nil {
		return 0, fmt.Errorf("%w; set goal", err)
	}
	return goal, nil
}
