package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jhu066/ijon-taliro/internal/blackbox"
	"github.com/jhu066/ijon-taliro/internal/config"
	"github.com/jhu066/ijon-taliro/internal/dynamo"
	"github.com/jhu066/ijon-taliro/internal/experiment"
	"github.com/jhu066/ijon-taliro/internal/export"
	"github.com/jhu066/ijon-taliro/internal/metrics"
	"github.com/jhu066/ijon-taliro/internal/optim"
	"github.com/jhu066/ijon-taliro/internal/storage"
	"github.com/jhu066/ijon-taliro/internal/trace"
	"github.com/jhu066/ijon-taliro/internal/tui"
	"github.com/jhu066/ijon-taliro/internal/viz"
)

var (
	configFile string
	verbose    bool
	// Simulator
	binary        string
	dataDir       string
	world         int
	format        string
	timeout       time.Duration
	replayTimeout time.Duration
	// Requirement
	goal        float64
	requirement string
	// Search
	optimizer     string
	controlPoints int
	frames        int
	stepSize      float64
	budget        int
	runs          int
	parallel      int
	seed          int64
	stopEarly     bool
	preset        string
	output        string
	live          bool
	// Export
	templatePath string
	svgOutput    string
	standalone   bool
	svgWidth     int
	svgHeight    int
	inputsDir    string
	outputsDir   string
	// Replay selection
	runIndex  int
	evalIndex int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "taliro",
		Short:         "falsification harness for the smbc platformer simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "search for inputs that reach the goal",
		Args:  cobra.NoArgs,
		RunE:  runSearch,
	}
	simulatorFlags(runCmd)
	runCmd.Flags().Float64Var(&goal, "goal", 0, "goal x position (default: world preset)")
	runCmd.Flags().StringVar(&requirement, "requirement", "", "per-state margin expression, e.g. \"goal - x\"")
	runCmd.Flags().StringVar(&optimizer, "optimizer", config.DefaultOptimizer, "optimizer")
	runCmd.Flags().IntVarP(&controlPoints, "control-points", "c", config.DefaultControlPoints, "joystick control points")
	runCmd.Flags().IntVarP(&frames, "frames", "f", config.DefaultFrames, "frames to simulate")
	runCmd.Flags().Float64Var(&stepSize, "step-size", config.DefaultStepSize, "frames per sample")
	runCmd.Flags().IntVarP(&budget, "budget", "b", config.DefaultBudget, "evaluations per run")
	runCmd.Flags().IntVar(&runs, "runs", config.DefaultRuns, "independent runs")
	runCmd.Flags().IntVar(&parallel, "parallel", 1, "runs executed concurrently")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	runCmd.Flags().BoolVar(&stopEarly, "stop-on-falsification", false, "end a run at the first negative cost")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset search configuration")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "save runs to this file instead of printing the best")
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")

	bestCmd := &cobra.Command{
		Use:   "best [runs_file]",
		Short: "show the lowest-cost evaluation",
		Args:  cobra.ExactArgs(1),
		RunE:  showBest,
	}

	listCmd := &cobra.Command{
		Use:   "list [runs_file]",
		Short: "list runs in a run file",
		Args:  cobra.ExactArgs(1),
		RunE:  listRuns,
	}

	visualizeCmd := &cobra.Command{
		Use:   "visualize [runs_file]",
		Short: "draw every trajectory into an SVG level map",
		Args:  cobra.ExactArgs(1),
		RunE:  visualize,
	}
	visualizeCmd.Flags().StringVar(&templatePath, "template", config.DefaultTemplate, "SVG template containing "+export.Placeholder)
	visualizeCmd.Flags().StringVarP(&svgOutput, "output", "o", config.DefaultSVGOutput, "output SVG")
	visualizeCmd.Flags().BoolVar(&standalone, "standalone", false, "write a bare SVG without a template")
	visualizeCmd.Flags().IntVar(&svgWidth, "width", 3392, "standalone SVG width")
	visualizeCmd.Flags().IntVar(&svgHeight, "height", 240, "standalone SVG height")

	extractCmd := &cobra.Command{
		Use:   "extract [runs_file]",
		Short: "write {n}.test / {n}.trace pairs for every evaluation",
		Args:  cobra.ExactArgs(1),
		RunE:  extract,
	}
	extractCmd.Flags().StringVarP(&inputsDir, "inputs", "i", config.DefaultInputsDir, "directory for .test files")
	extractCmd.Flags().StringVarP(&outputsDir, "outputs", "o", config.DefaultOutputsDir, "directory for .trace files")

	replayCmd := &cobra.Command{
		Use:   "replay [runs_file]",
		Short: "play the best command sequence in video mode",
		Args:  cobra.ExactArgs(1),
		RunE:  replay,
	}
	simulatorFlags(replayCmd)
	replayCmd.Flags().IntVar(&runIndex, "run", -1, "run index (default: best)")
	replayCmd.Flags().IntVar(&evalIndex, "eval", -1, "evaluation index within --run")

	worldsCmd := &cobra.Command{
		Use:   "worlds",
		Short: "list worlds with a known goal position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORLD\tGOAL X")
			for _, wd := range config.ListWorlds() {
				fmt.Fprintf(w, "%d\t%g\n", wd.Index, wd.Goal)
			}
			return w.Flush()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available search presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tOPTIMIZER\tRUNS\tBUDGET\tCONTROL POINTS\tFRAMES")
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", name, p.Optimizer, p.Runs, p.Budget, p.ControlPoints, p.Frames)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, bestCmd, listCmd, visualizeCmd, extractCmd, replayCmd, worldsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func simulatorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&binary, "binary", config.DefaultBinary, "simulator executable")
	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir, "simulator asset directory")
	cmd.Flags().IntVarP(&world, "world", "w", 0, "world index")
	cmd.Flags().StringVar(&format, "format", config.DefaultFormat, "trace output format (json, csv)")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "per-evaluation simulator timeout")
	cmd.Flags().DurationVar(&replayTimeout, "replay-timeout", 0, "replay timeout (0: none)")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig builds the effective configuration: preset or defaults, then
// the config file, then any flag set explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("binary") {
		cfg.Simulator.Binary = binary
	}
	if flags.Changed("data-dir") {
		cfg.Simulator.DataDir = dataDir
	}
	if flags.Changed("world") {
		cfg.World = world
	}
	if flags.Changed("format") {
		cfg.Simulator.Format = format
	}
	if flags.Changed("timeout") {
		cfg.Simulator.Timeout = timeout
	}
	if flags.Changed("replay-timeout") {
		cfg.Simulator.ReplayTimeout = replayTimeout
	}
	if flags.Lookup("goal") != nil {
		if flags.Changed("goal") {
			cfg.Goal = goal
		}
		if flags.Changed("requirement") {
			cfg.Requirement = requirement
		}
		if flags.Changed("optimizer") {
			cfg.Search.Optimizer = optimizer
		}
		if flags.Changed("control-points") {
			cfg.Search.ControlPoints = controlPoints
		}
		if flags.Changed("frames") {
			cfg.Search.Frames = frames
		}
		if flags.Changed("step-size") {
			cfg.Search.StepSize = stepSize
		}
		if flags.Changed("budget") {
			cfg.Search.Budget = budget
		}
		if flags.Changed("runs") {
			cfg.Search.Runs = runs
		}
		if flags.Changed("parallel") {
			cfg.Search.Parallel = parallel
		}
		if flags.Changed("stop-on-falsification") {
			cfg.Search.StopOnFalsification = stopEarly
		}
		if cfg.Search.Seed == 0 || flags.Changed("seed") {
			cfg.Search.Seed = seed
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newModel(cfg *config.Config, logger *slog.Logger) (*blackbox.Model, error) {
	f, err := trace.ParseFormat(cfg.Simulator.Format)
	if err != nil {
		return nil, err
	}
	return blackbox.New(blackbox.Config{
		Binary:        cfg.Simulator.Binary,
		DataDir:       cfg.Simulator.DataDir,
		World:         cfg.World,
		Format:        f,
		Timeout:       cfg.Simulator.Timeout,
		ReplayTimeout: cfg.Simulator.ReplayTimeout,
		ReplayOutput:  os.Stdout,
	}, logger)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	goalX, err := cfg.GoalX()
	if err != nil {
		return err
	}
	spec, err := metrics.New(cfg.Requirement, goalX)
	if err != nil {
		return err
	}
	opt, err := experiment.NewRegistry().GetOptimizer(cfg.Search.Optimizer)
	if err != nil {
		return err
	}
	model, err := newModel(cfg, logger)
	if err != nil {
		return err
	}

	sampler := optim.Sampler{
		Signals: []optim.SignalInput{
			optim.UniformSignal(dynamo.JoystickSignal, cfg.Search.ControlPoints, optim.Interval{Min: 0, Max: 360}),
		},
		Span:     optim.Span{Start: 0, End: float64(cfg.Search.Frames)},
		StepSize: cfg.Search.StepSize,
	}
	falsifier, err := experiment.New(model, spec, opt, sampler, experiment.Options{
		Runs:                cfg.Search.Runs,
		Budget:              cfg.Search.Budget,
		Seed:                cfg.Search.Seed,
		Parallel:            cfg.Search.Parallel,
		StopOnFalsification: cfg.Search.StopOnFalsification,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	var collection dynamo.RunCollection
	if live {
		err = tui.Run(ctx, cfg.Search.Runs, cfg.Search.Budget, func(ctx context.Context, obs tui.Observer) error {
			falsifier.AddObserver(obs)
			var err error
			collection, err = falsifier.Run(ctx)
			return err
		})
	} else {
		collection, err = falsifier.Run(ctx)
	}
	return report(os.Stdout, collection, err, output, time.Since(start))
}

// report saves or prints whatever the search recorded. A search error is
// returned after the partial results have been kept; cancellation alone is
// not an error once something was recorded.
func report(w io.Writer, collection dynamo.RunCollection, searchErr error, path string, elapsed time.Duration) error {
	evals := collection.Evaluations()
	if searchErr != nil {
		if len(evals) == 0 {
			return searchErr
		}
		slog.Warn("search stopped early, keeping partial results", slog.String("error", searchErr.Error()))
		if errors.Is(searchErr, context.Canceled) {
			searchErr = nil
		}
	}

	fmt.Fprintf(w, "%s evaluations in %s (%d failed)\n",
		humanize.Comma(int64(len(evals))), elapsed.Round(time.Millisecond), failures(collection))

	if path != "" {
		saved, err := storage.Save(collection, path)
		if err != nil {
			return errors.Join(searchErr, err)
		}
		fmt.Fprintf(w, "saved %d runs to %s\n", len(collection), saved)
		return searchErr
	}
	if err := printBest(w, collection); err != nil {
		return errors.Join(searchErr, err)
	}
	return searchErr
}

func failures(c dynamo.RunCollection) int {
	n := 0
	for _, r := range c {
		n += r.Failures()
	}
	return n
}

func printBest(w io.Writer, collection dynamo.RunCollection) error {
	r, i, err := storage.Locate(collection)
	if err != nil {
		return err
	}
	best := collection[r].Evaluations[i]

	fmt.Fprintln(w, viz.Summary(fmt.Sprintf("best: run %d, evaluation %d", r, i), best))
	if plot := viz.TrajectoryPlot(best.Trace, 80, 10); plot != "" {
		fmt.Fprintln(w, plot)
	}
	if plot := viz.CostHistory(collection[r].Evaluations, 80, 8); plot != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, plot)
	}
	return nil
}

func showBest(cmd *cobra.Command, args []string) error {
	collection, err := storage.Load(args[0])
	if err != nil {
		return err
	}
	return printBest(os.Stdout, collection)
}

func listRuns(cmd *cobra.Command, args []string) error {
	path := storage.NormalizePath(args[0])
	collection, err := storage.Load(path)
	if err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		fmt.Printf("%s: %s, modified %s\n\n", path, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}

	if len(collection) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tOPTIMIZER\tSEED\tEVALS\tFAILED\tBEST")

	for i, run := range collection {
		best := "-"
		if b := run.Best(); b >= 0 {
			best = fmt.Sprintf("%.3f", run.Evaluations[b].Cost)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%d\t%s\n",
			i,
			run.ID,
			run.Optimizer,
			run.Seed,
			humanize.Comma(int64(len(run.Evaluations))),
			run.Failures(),
			best,
		)
	}

	return w.Flush()
}

func visualize(cmd *cobra.Command, args []string) error {
	collection, err := storage.Load(args[0])
	if err != nil {
		return err
	}

	style := export.DefaultStyle()
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		style.Stroke = cfg.Export.Stroke
		style.Opacity = cfg.Export.Opacity
		style.StrokeWidth = cfg.Export.StrokeWidth
		if !cmd.Flags().Changed("template") {
			templatePath = cfg.Export.Template
		}
		if !cmd.Flags().Changed("output") {
			svgOutput = cfg.Export.Output
		}
	}

	traces := export.Label(collection)
	if standalone {
		err = style.WriteStandalone(traces, svgWidth, svgHeight, svgOutput)
	} else {
		err = style.Export(traces, templatePath, svgOutput)
	}
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s paths to %s\n", humanize.Comma(int64(len(traces))), svgOutput)
	return nil
}

func extract(cmd *cobra.Command, args []string) error {
	collection, err := storage.Load(args[0])
	if err != nil {
		return err
	}

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cmd.Flags().Changed("inputs") {
			inputsDir = cfg.Export.InputsDir
		}
		if !cmd.Flags().Changed("outputs") {
			outputsDir = cfg.Export.OutputsDir
		}
	}

	res, err := export.Extract(collection, inputsDir, outputsDir)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d tests to %s and %d traces to %s\n", res.Tests, inputsDir, res.Traces, outputsDir)
	return nil
}

func replay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	collection, err := storage.Load(args[0])
	if err != nil {
		return err
	}

	r, i := runIndex, evalIndex
	if r < 0 {
		if r, i, err = storage.Locate(collection); err != nil {
			return err
		}
	}
	if r >= len(collection) || i < 0 || i >= len(collection[r].Evaluations) {
		return fmt.Errorf("no evaluation %d in run %d", i, r)
	}
	e := collection[r].Evaluations[i]
	if len(e.Model) == 0 {
		return fmt.Errorf("evaluation %d in run %d has no command sequence (%s)", i, r, e.Failure)
	}

	model, err := newModel(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	slog.Info("replaying evaluation", slog.Int("run", r), slog.Int("evaluation", i), slog.Float64("cost", e.Cost))
	return model.Replay(ctx, e.Model)
}
