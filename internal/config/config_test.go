package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	herrors "github.com/wfharness/wst/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Harness.RuntimeDir != "/tmp/wst" {
		t.Errorf("RuntimeDir = %s, want /tmp/wst", cfg.Harness.RuntimeDir)
	}
	if cfg.Harness.SocketEnv != "_WAYFIRE_SOCKET" {
		t.Errorf("SocketEnv = %s, want _WAYFIRE_SOCKET", cfg.Harness.SocketEnv)
	}
	if cfg.Harness.SettleDuration != 100*time.Millisecond {
		t.Errorf("SettleDuration = %v, want 100ms", cfg.Harness.SettleDuration)
	}
	if cfg.Launch.SettleBase != 500*time.Millisecond || cfg.Launch.SettleJitter != time.Second {
		t.Errorf("Launch = %+v, want 500ms base with 1s jitter", cfg.Launch)
	}
	if cfg.Wait.Attempts != 10 || cfg.Wait.Interval != 100*time.Millisecond || !cfg.Wait.EarlyExit {
		t.Errorf("Wait = %+v, want 10 attempts, 100ms, early exit", cfg.Wait)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[harness]
runtime_dir = "/run/user/1000/wst"
settle_duration = "250ms"

[launch]
settle_jitter = "0s"

[wait]
attempts = 3
interval = "10ms"
early_exit = false

[runner]
jobs = 4
gui = "nogui"
exclude = ["gui/**"]

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Harness.RuntimeDir != "/run/user/1000/wst" {
		t.Errorf("RuntimeDir = %s", cfg.Harness.RuntimeDir)
	}
	if cfg.Harness.SettleDuration != 250*time.Millisecond {
		t.Errorf("SettleDuration = %v, want 250ms", cfg.Harness.SettleDuration)
	}
	if cfg.Launch.SettleJitter != 0 {
		t.Errorf("SettleJitter = %v, want 0", cfg.Launch.SettleJitter)
	}
	// Untouched keys keep their defaults.
	if cfg.Launch.SettleBase != 500*time.Millisecond {
		t.Errorf("SettleBase = %v, want default 500ms", cfg.Launch.SettleBase)
	}
	if cfg.Wait.EarlyExit {
		t.Error("EarlyExit = true, want false")
	}
	if cfg.Runner.Jobs != 4 || cfg.Runner.GUI != GUINever {
		t.Errorf("Runner = %+v", cfg.Runner)
	}
	if len(cfg.Runner.Exclude) != 1 || cfg.Runner.Exclude[0] != "gui/**" {
		t.Errorf("Exclude = %v", cfg.Runner.Exclude)
	}
	if cfg.Logging.Level != LogLevelDebug || cfg.Logging.Format != LogFormatJSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Harness.SocketPrefix != "wayfire" {
		t.Errorf("SocketPrefix = %s, want wayfire", cfg.Harness.SocketPrefix)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[harness\nruntime_dir ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid TOML")
	}
}

func TestLoadFromDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	globalDir := filepath.Join(home, ".config", "wst")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatal(err)
	}
	global := "[runner]\njobs = 8\n[wait]\nattempts = 20\n"
	if err := os.WriteFile(filepath.Join(globalDir, "config.toml"), []byte(global), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "wst.toml"), []byte("[runner]\njobs = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(project)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Runner.Jobs != 2 {
		t.Errorf("Jobs = %d, want project value 2", cfg.Runner.Jobs)
	}
	if cfg.Wait.Attempts != 20 {
		t.Errorf("Attempts = %d, want global value 20", cfg.Wait.Attempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"empty runtime dir", func(c *Config) { c.Harness.RuntimeDir = "" }, herrors.CodeConfigMissingField},
		{"zero settle", func(c *Config) { c.Harness.SettleDuration = 0 }, herrors.CodeConfigInvalidValue},
		{"negative jitter", func(c *Config) { c.Launch.SettleJitter = -time.Second }, herrors.CodeConfigInvalidValue},
		{"no attempts", func(c *Config) { c.Wait.Attempts = 0 }, herrors.CodeConfigInvalidValue},
		{"zero jobs", func(c *Config) { c.Runner.Jobs = 0 }, herrors.CodeConfigInvalidValue},
		{"bad gui filter", func(c *Config) { c.Runner.GUI = "sometimes" }, herrors.CodeConfigInvalidValue},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, herrors.CodeConfigInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !herrors.HasCode(err, tt.wantCode) {
				t.Errorf("Validate() = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestPathResolvers(t *testing.T) {
	cfg := Default()
	if got := cfg.LogDir("/work"); got != "/work/wst-logs" {
		t.Errorf("LogDir() = %s", got)
	}
	cfg.Runner.LogDir = "/var/log/wst"
	if got := cfg.LogDir("/work"); got != "/var/log/wst" {
		t.Errorf("LogDir() = %s", got)
	}
	if got := cfg.HistoryPath("/work"); got != "" {
		t.Errorf("HistoryPath() = %q, want empty when disabled", got)
	}
	cfg.History.Database = "history.db"
	if got := cfg.HistoryPath("/work"); got != "/work/history.db" {
		t.Errorf("HistoryPath() = %s", got)
	}
}
