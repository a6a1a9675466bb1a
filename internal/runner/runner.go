// Package runner discovers test directories and executes them through the
// harness, optionally in parallel.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/harness"
	"github.com/wfharness/wst/internal/logging"
	"github.com/wfharness/wst/internal/status"
)

// CancelledMessage is the SKIPPED message of tests not started before cancellation.
const CancelledMessage = "Run cancelled"

// Result is the outcome of one test.
type Result struct {
	Name        string         `json:"name"`
	Dir         string         `json:"dir"`
	GUI         bool           `json:"gui"`
	Outcome     status.Outcome `json:"outcome"`
	Duration    time.Duration  `json:"duration"`
	LogPath     string         `json:"log_path"`
	Screenshots []string       `json:"screenshots,omitempty"`
}

// Report is the outcome of a whole run.
type Report struct {
	RunID   string         `json:"run_id"`
	Started time.Time      `json:"started"`
	Results []Result       `json:"results"`
	Summary status.Summary `json:"summary"`
}

// Entries converts the results to report entries.
func (r *Report) Entries() []status.Entry {
	entries := make([]status.Entry, len(r.Results))
	for i, res := range r.Results {
		entries[i] = status.Entry{Name: res.Name, Outcome: res.Outcome, Duration: res.Duration}
	}
	return entries
}

// Runner executes tests against one compositor binary.
type Runner struct {
	harness    *harness.Harness
	compositor string
	logDir     string
	jobs       int
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithJobs sets the number of tests run at once.
func WithJobs(n int) Option {
	return func(r *Runner) { r.jobs = n }
}

// WithNow replaces the wall clock used for timings.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner. Logs and screenshots go below logDir.
func New(h *harness.Harness, compositor, logDir string, opts ...Option) *Runner {
	r := &Runner{
		harness:    h,
		compositor: compositor,
		logDir:     logDir,
		jobs:       1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(logging.OrDefault(r.logger), "runner")
	if r.jobs < 1 {
		r.jobs = 1
	}
	return r
}

// NewFromConfig creates a Runner using the runner section of cfg.
func NewFromConfig(cfg *config.Config, h *harness.Harness, compositor, baseDir string, opts ...Option) *Runner {
	base := []Option{WithJobs(cfg.Runner.Jobs)}
	return New(h, compositor, cfg.LogDir(baseDir), append(base, opts...)...)
}

// Run executes tests with at most jobs running at once. Results keep the
// order of tests. Cancelling ctx stops new tests from starting; running
// tests finish normally.
func (r *Runner) Run(ctx context.Context, tests []Test) (*Report, error) {
	return r.runWith(ctx, tests, func(t Test) harness.Scenario { return t.Script })
}

func (r *Runner) runWith(ctx context.Context, tests []Test, scenarioOf func(Test) harness.Scenario) (*Report, error) {
	if err := os.MkdirAll(r.logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Started: r.now(),
		Results: make([]Result, len(tests)),
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("run starting", "tests", len(tests), "jobs", r.jobs, "compositor", r.compositor)

	g := new(errgroup.Group)
	g.SetLimit(r.jobs)
	for i, t := range tests {
		g.Go(func() error {
			report.Results[i] = r.runOne(ctx, logger, t, scenarioOf(t))
			return nil
		})
	}
	_ = g.Wait()

	report.Summary = status.Summarize(report.Entries())
	logger.Info("run finished",
		"total", report.Summary.Total,
		"failures", report.Summary.Failures(),
		"skipped", report.Summary.Count(status.Skipped))
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, logger *slog.Logger, t Test, scenario harness.Scenario) Result {
	base := filepath.Join(r.logDir, filepath.FromSlash(t.Name))
	res := Result{
		Name:    t.Name,
		Dir:     t.Dir,
		GUI:     t.GUI(),
		LogPath: base + ".log",
	}

	if ctx.Err() != nil {
		res.Outcome = status.Skip(CancelledMessage)
		return res
	}
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		res.Outcome = status.Newf(status.Crashed, "creating log dir: %v", err)
		return res
	}

	logger = logging.WithTest(logger, t.Name)
	logger.Debug("test starting", "dir", t.Dir)

	var shots []string
	sc := recordShots{Scenario: scenario, gui: t.GUI(), shots: &shots}

	start := r.now()
	res.Outcome = r.harness.Execute(sc, r.compositor, res.LogPath,
		harness.InDir(t.Dir),
		harness.Named(t.Name),
		harness.WithScreenshotPrefix(base),
	)
	res.Duration = r.now().Sub(start)
	res.Screenshots = shots

	logger.Info("test finished", "status", res.Outcome.Status, "duration", res.Duration)
	return res
}

// recordShots copies the context's screenshot list out after Run.
type recordShots struct {
	harness.Scenario
	gui   bool
	shots *[]string
}

func (s recordShots) Run(ctx *harness.Context) (status.Outcome, error) {
	defer func() { *s.shots = append([]string(nil), ctx.Screenshots...) }()
	return s.Scenario.Run(ctx)
}

func (s recordShots) IsGUI() bool {
	return s.gui
}
