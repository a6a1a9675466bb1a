package e2e

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/wfharness/wst/internal/fakecomp"
)

// Binaries locates the built executables under test.
type Binaries struct {
	Wst        string
	Compositor string
}

// Build compiles wst and wst-fakecomp from the module at root into dir.
func Build(root, dir string) (Binaries, error) {
	bins := Binaries{
		Wst:        filepath.Join(dir, "wst"),
		Compositor: filepath.Join(dir, "wst-fakecomp"),
	}
	for out, pkg := range map[string]string{bins.Wst: "./cmd/wst", bins.Compositor: "./cmd/wst-fakecomp"} {
		cmd := exec.Command("go", "build", "-o", out, pkg)
		cmd.Dir = root
		if output, err := cmd.CombinedOutput(); err != nil {
			return Binaries{}, fmt.Errorf("building %s: %w\n%s", pkg, err, output)
		}
	}
	return bins, nil
}

// FindModuleRoot walks up from the working directory to go.mod.
func FindModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

// Harness provides an isolated environment for one test.
type Harness struct {
	// TempDir is the root temporary directory for this test.
	TempDir string
	// TestsDir holds test directories written with WriteTest.
	TestsDir string
	// LogDir receives compositor logs and screenshots.
	LogDir string
	// DBPath is the history database.
	DBPath string
	// ConfigPath is the wst config passed with --config.
	ConfigPath string
	// FakeConfigPath is the fake compositor behaviour file.
	FakeConfigPath string

	bins Binaries
	t    *testing.T
}

// NewHarness creates a harness with fast timings and isolated directories.
func NewHarness(t *testing.T, bins Binaries) *Harness {
	t.Helper()

	tempDir := t.TempDir()
	runtimeDir, err := os.MkdirTemp("", "wst-e2e")
	if err != nil {
		t.Fatalf("creating runtime dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(runtimeDir) })

	h := &Harness{
		TempDir:        tempDir,
		TestsDir:       filepath.Join(tempDir, "tests"),
		LogDir:         filepath.Join(tempDir, "logs"),
		DBPath:         filepath.Join(tempDir, "history.db"),
		ConfigPath:     filepath.Join(tempDir, "wst.toml"),
		FakeConfigPath: filepath.Join(tempDir, "fake.yaml"),
		bins:           bins,
		t:              t,
	}

	config := fmt.Sprintf(`[harness]
runtime_dir = %q
settle_duration = "20ms"

[launch]
settle_base = "300ms"
settle_jitter = "0s"

[wait]
interval = "20ms"

[runner]
log_dir = %q

[history]
database = %q

[logging]
level = "debug"
format = "json"
`, runtimeDir, h.LogDir, h.DBPath)

	if err := os.MkdirAll(h.TestsDir, 0755); err != nil {
		t.Fatalf("creating tests dir: %v", err)
	}
	if err := os.WriteFile(h.ConfigPath, []byte(config), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := fakecomp.WriteConfig(h.FakeConfigPath, fakecomp.DefaultConfig()); err != nil {
		t.Fatalf("writing fake config: %v", err)
	}
	return h
}

// WriteFakeConfig replaces the fake compositor behaviour.
func (h *Harness) WriteFakeConfig(cfg fakecomp.Config) {
	h.t.Helper()
	if err := fakecomp.WriteConfig(h.FakeConfigPath, cfg); err != nil {
		h.t.Fatalf("writing fake config: %v", err)
	}
}

// WriteTest creates a test directory with a scenario and compositor config.
func (h *Harness) WriteTest(name, scenario string) string {
	h.t.Helper()
	dir := filepath.Join(h.TestsDir, filepath.FromSlash(name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.t.Fatalf("creating test dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scenario.yaml"), []byte(scenario), 0644); err != nil {
		h.t.Fatalf("writing scenario: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "wayfire.ini"), []byte("[core]\nplugins = stipc\n"), 0644); err != nil {
		h.t.Fatalf("writing compositor config: %v", err)
	}
	return dir
}

// Env returns the environment for wst subprocesses. It reaches the
// compositor too, since the harness passes its environment on.
func (h *Harness) Env() []string {
	return append(os.Environ(), fakecomp.ConfigEnv+"="+h.FakeConfigPath)
}

// Result is a finished wst invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes wst with the harness config and the fake compositor
// prepended to args, and waits up to a minute.
func (h *Harness) Run(args ...string) Result {
	h.t.Helper()
	p := h.Start(args...)
	return p.WaitWithTimeout(60 * time.Second)
}

func (h *Harness) command(args []string) *exec.Cmd {
	full := append([]string{args[0], "--config", h.ConfigPath}, args[1:]...)
	if args[0] == "run" {
		full = append(full, "--compositor", h.bins.Compositor)
	}
	cmd := exec.Command(h.bins.Wst, full...)
	cmd.Dir = h.TempDir
	cmd.Env = h.Env()
	return cmd
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func newResult(stdout, stderr *bytes.Buffer, err error) Result {
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(err)}
}
