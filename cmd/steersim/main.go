package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/san-kum/steersim/internal/config"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/observability"
	"github.com/san-kum/steersim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFormat  string
	theme      string

	// Run parameters; flags override the config file, which overrides the preset.
	scenario      string
	dt            float64
	duration      float64
	kp            float64
	ki            float64
	kd            float64
	outputLimit   float64
	validateState bool

	label      string
	noSave     bool
	noProgress bool

	// Output
	field     string
	outPath   string
	style     string
	dpi       int
	widthIn   float64
	heightIn  float64
	plotWidth int

	// Tuning
	gridSpecs []string
	metric    string
	workers   int
	sweepName string
	sweepFrom float64
	sweepTo   float64
	sweepN    int

	// Fuzzy inspection
	errDeg  float64
	rateDeg float64

	// Live view
	stepsPerFrame int

	// cfg is the resolved configuration, loaded before any command runs.
	cfg *config.Config
)

// main registers the steersim commands and executes the root command. It
// exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:               "steersim",
		Short:             "fuzzy-PID fin steering simulator",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", "", "data directory (default from config, .steersim)")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a preset configuration")
	pf.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&theme, "theme", viz.ThemeCyberpunk.Name, fmt.Sprintf("color theme %v", viz.ThemeNames()))

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store the result",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&label, "label", "", "label stored with the run")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with live visualization and gain tuning",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps", 20, "control periods per frame")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&field, "field", "", fmt.Sprintf("single chart to draw %v (default all)", viz.ChartFields()))
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "chart width")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response, frequency and phase analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV (time, phi_deg, theta_deg, force)",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportImageCmd := &cobra.Command{
		Use:   "export-image [run_id]",
		Short: "render a run chart to PNG or SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportImage,
	}
	exportImageCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, .png or .svg (default <run_id>.png)")
	exportImageCmd.Flags().StringVar(&style, "style", "line", "chart style (line, scatter, area, bold, stacked)")
	exportImageCmd.Flags().StringVar(&field, "field", "deflection", "quantity to chart (deflection, valve, force)")
	exportImageCmd.Flags().IntVar(&dpi, "dpi", 300, "PNG resolution")
	exportImageCmd.Flags().Float64Var(&widthIn, "width", 8, "width in inches")
	exportImageCmd.Flags().Float64Var(&heightIn, "height", 6, "height in inches")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search PID gains minimizing a metric",
		Args:  cobra.NoArgs,
		RunE:  tuneGains,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridSpecs, "grid", []string{"kp=20:80:4", "kd=2.5:10:4"}, "parameter grid as name=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "iae", "metric to minimize")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (default GOMAXPROCS)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter and tabulate the response",
		Args:  cobra.NoArgs,
		RunE:  sweepParam,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepName, "param", "kp", fmt.Sprintf("parameter to sweep %v", dynamo.ParamNames()))
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 10, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 80, "last value")
	sweepCmd.Flags().IntVar(&sweepN, "steps", 8, "number of values")

	fuzzyCmd := &cobra.Command{
		Use:   "fuzzy",
		Short: "evaluate the fuzzy controller for one error and rate",
		Args:  cobra.NoArgs,
		RunE:  inspectFuzzy,
	}
	fuzzyCmd.Flags().Float64Var(&errDeg, "error", 5, "attitude error (deg)")
	fuzzyCmd.Flags().Float64Var(&rateDeg, "rate", 0, "error rate (deg/s)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-12s %s\n", name, config.Describe(name))
			}
			return nil
		},
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the resolved configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run a yaml batch of simulations and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	rootCmd.AddCommand(runCmd, liveCmd, batchCmd, listCmd, deleteCmd, plotCmd, analyzeCmd,
		exportCSVCmd, exportJSONCmd, exportImageCmd, tuneCmd, sweepCmd, fuzzyCmd,
		presetsCmd, initConfigCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scenario, "scenario", "initial", "scenario (initial, disturbance, tracking or 1-3)")
	cmd.Flags().Float64Var(&dt, "dt", dynamo.DefaultDt, "timestep (s)")
	cmd.Flags().Float64Var(&duration, "time", dynamo.DefaultDuration, "duration t_end (s)")
	cmd.Flags().Float64Var(&kp, "kp", dynamo.DefaultKp, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", dynamo.DefaultKi, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", dynamo.DefaultKd, "pid kd")
	cmd.Flags().Float64Var(&outputLimit, "limit", dynamo.DefaultOutputLimit, "pid output limit (V), 0 disables")
	cmd.Flags().BoolVar(&validateState, "validate", false, "abort on non-finite state")
}

// setup resolves the configuration and initializes logging and theme.
func setup(cmd *cobra.Command, args []string) error {
	base := config.DefaultConfig()
	if preset != "" {
		p, err := config.LookupPreset(preset)
		if err != nil {
			return err
		}
		base = p
	}

	loaded, err := config.LoadWithBase(configFile, base)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	if configFile == "" || cmd.Flags().Changed("log-level") {
		cfg.Logger.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logger.Format = logFormat
	}
	observability.InitializeLogger(cfg.Logger)

	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if !viz.SetTheme(theme) {
		return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
	}
	return nil
}

// runParams applies the run flags the user set on top of the resolved
// configuration.
func runParams(cmd *cobra.Command) (dynamo.Params, error) {
	c := *cfg
	flags := cmd.Flags()
	if flags.Changed("scenario") {
		c.Scenario = scenario
	}
	if flags.Changed("dt") {
		c.Dt = dt
	}
	if flags.Changed("time") {
		c.Duration = duration
	}
	if flags.Changed("kp") {
		c.Gains.Kp = kp
	}
	if flags.Changed("ki") {
		c.Gains.Ki = ki
	}
	if flags.Changed("kd") {
		c.Gains.Kd = kd
	}
	if flags.Changed("limit") {
		c.OutputLimit = outputLimit
	}
	if flags.Changed("validate") {
		c.ValidateState = validateState
	}
	*cfg = c
	return c.Params()
}
