package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/harness"
	"github.com/wfharness/wst/internal/history"
	"github.com/wfharness/wst/internal/runner"
	"github.com/wfharness/wst/internal/status"
)

var (
	runCompositor string
	runJobs       int
	runGUI        string
	runInclude    []string
	runExclude    []string
	runLogDir     string
	runDB         string
	runFormat     string
	runNoColor    bool
)

var runCmd = &cobra.Command{
	Use:   "run [dirs...]",
	Short: "Run tests against a compositor",
	Long: `Discover test directories below the given roots (default: current
directory) and run each against a fresh compositor.

Exit status is 0 when no test failed, 1 when any test was WRONG, GUI_WRONG
or CRASHED, and 2 on command errors.

Examples:
  wst run --compositor /usr/bin/wayfire tests/
  wst run --compositor ./build/src/wayfire --gui nogui -j 4 tests/
  wst run --compositor wayfire --include 'xdg-shell/**' --format json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCompositor, "compositor", "", "compositor binary to test (required)")
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "tests to run at once (default from config)")
	runCmd.Flags().StringVar(&runGUI, "gui", "", "run all, gui or nogui tests (default from config)")
	runCmd.Flags().StringSliceVar(&runInclude, "include", nil, "glob of test names to run (repeatable)")
	runCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "glob of test names to skip (repeatable)")
	runCmd.Flags().StringVar(&runLogDir, "logdir", "", "directory for compositor logs and screenshots")
	runCmd.Flags().StringVar(&runDB, "db", "", "record results in this history database")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "output format: text or json")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "disable colored output")
	_ = runCmd.MarkFlagRequired("compositor")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFormat != "text" && runFormat != "json" {
		return commandError("invalid --format", fmt.Errorf("%q is not text or json", runFormat))
	}

	cfg, baseDir, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return commandError("invalid options", err)
	}
	if err := runner.ValidatePatterns(append(cfg.Runner.Include, cfg.Runner.Exclude...)); err != nil {
		return commandError("invalid options", err)
	}

	compositor, err := exec.LookPath(runCompositor)
	if err != nil {
		return commandError("compositor not found", err)
	}

	logger, closer, err := setupLogger(cfg, baseDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	tests, err := runner.Discover(roots, cfg.Runner.ScenarioFile, cfg.Runner.Include, cfg.Runner.Exclude)
	if err != nil {
		return commandError("loading tests", err)
	}
	tests = runner.FilterGUI(tests, cfg.Runner.GUI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := harness.New(cfg, harness.WithLogger(logger))
	r := runner.NewFromConfig(cfg, h, compositor, baseDir, runner.WithLogger(logger))

	report, err := r.Run(ctx, tests)
	if err != nil {
		return commandError("running tests", err)
	}

	if dbPath := cfg.HistoryPath(baseDir); dbPath != "" {
		if err := recordHistory(ctx, dbPath, compositor, report); err != nil {
			logger.Warn("recording history failed", "db", dbPath, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if runFormat == "json" {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		opts := status.FormatOptions{NoColor: runNoColor, Verbose: verbose}
		if len(report.Results) == 0 {
			fmt.Fprintln(out, status.FormatSummary(report.Summary, opts))
		} else {
			fmt.Fprintln(out, status.FormatReport(report.Entries(), opts))
		}
	}

	if report.Summary.Failed() {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d test(s) failed", report.Summary.Failures())}
	}
	return nil
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		cfg.Runner.Jobs = runJobs
	}
	if flags.Changed("gui") {
		cfg.Runner.GUI = config.GUIFilter(runGUI)
	}
	if flags.Changed("include") {
		cfg.Runner.Include = runInclude
	}
	if flags.Changed("exclude") {
		cfg.Runner.Exclude = runExclude
	}
	if flags.Changed("logdir") {
		cfg.Runner.LogDir = runLogDir
	}
	if flags.Changed("db") {
		cfg.History.Database = runDB
	}
}

func recordHistory(ctx context.Context, dbPath, compositor string, report *runner.Report) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records := make([]history.Record, len(report.Results))
	for i, res := range report.Results {
		records[i] = history.Record{
			Name:     res.Name,
			Outcome:  res.Outcome,
			Duration: res.Duration,
			LogPath:  res.LogPath,
		}
	}
	// The run is recorded even when ctx was cancelled mid-run.
	return store.RecordRun(context.WithoutCancel(ctx), history.Run{
		ID:         report.RunID,
		Started:    report.Started,
		Compositor: compositor,
	}, records)
}
