// Package config loads the harness configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	herrors "github.com/wfharness/wst/internal/errors"
)

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// GUIFilter selects tests by their GUI classification.
type GUIFilter string

const (
	GUIAll   GUIFilter = "all"
	GUIOnly  GUIFilter = "gui"
	GUINever GUIFilter = "nogui"
)

// HarnessConfig holds settings for a single test execution.
type HarnessConfig struct {
	// RuntimeDir is where compositor sockets are created.
	RuntimeDir string `toml:"runtime_dir"`
	// SocketPrefix is the component name used in socket file names.
	SocketPrefix string `toml:"socket_prefix"`
	// SocketEnv is the environment variable carrying the socket path to the compositor.
	SocketEnv string `toml:"socket_env"`
	// ConfigFile is the compositor config, relative to the test directory.
	ConfigFile string `toml:"config_file"`
	// SettleDuration is the base delay used by settle and scaled by wait_ms.
	SettleDuration time.Duration `toml:"settle_duration"`
}

// LaunchConfig holds the jittered settle applied after spawning the compositor.
type LaunchConfig struct {
	SettleBase   time.Duration `toml:"settle_base"`
	SettleJitter time.Duration `toml:"settle_jitter"`
}

// WaitConfig holds client-count polling settings.
type WaitConfig struct {
	Attempts int           `toml:"attempts"`
	Interval time.Duration `toml:"interval"`
	// EarlyExit returns as soon as the expected count is observed.
	// When false the whole poll loop runs and a final check decides.
	EarlyExit bool `toml:"early_exit"`
}

// IPCConfig holds control channel settings.
type IPCConfig struct {
	// Timeout bounds a single request round trip.
	Timeout time.Duration `toml:"timeout"`
}

// RunnerConfig holds settings for running many tests.
type RunnerConfig struct {
	Jobs         int       `toml:"jobs"`
	GUI          GUIFilter `toml:"gui"`
	ScenarioFile string    `toml:"scenario_file"`
	Include      []string  `toml:"include"`
	Exclude      []string  `toml:"exclude"`
	LogDir       string    `toml:"log_dir"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Database string `toml:"database"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for wst.
type Config struct {
	Harness HarnessConfig `toml:"harness"`
	Launch  LaunchConfig  `toml:"launch"`
	Wait    WaitConfig    `toml:"wait"`
	IPC     IPCConfig     `toml:"ipc"`
	Runner  RunnerConfig  `toml:"runner"`
	History HistoryConfig `toml:"history"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Harness: HarnessConfig{
			RuntimeDir:     "/tmp/wst",
			SocketPrefix:   "wayfire",
			SocketEnv:      "_WAYFIRE_SOCKET",
			ConfigFile:     "wayfire.ini",
			SettleDuration: 100 * time.Millisecond,
		},
		Launch: LaunchConfig{
			SettleBase:   500 * time.Millisecond,
			SettleJitter: time.Second,
		},
		Wait: WaitConfig{
			Attempts:  10,
			Interval:  100 * time.Millisecond,
			EarlyExit: true,
		},
		IPC: IPCConfig{
			Timeout: 5 * time.Second,
		},
		Runner: RunnerConfig{
			Jobs:         1,
			GUI:          GUIAll,
			ScenarioFile: "scenario.yaml",
			Include:      []string{"**"},
			LogDir:       "wst-logs",
		},
		History: HistoryConfig{
			Database: "",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations.
// Applies in order: defaults -> ~/.config/wst/config.toml -> <dir>/wst.toml
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ".config", "wst", "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, "wst.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Harness.RuntimeDir == "" {
		return herrors.ConfigMissingField("harness.runtime_dir")
	}
	if c.Harness.SocketEnv == "" {
		return herrors.ConfigMissingField("harness.socket_env")
	}
	if c.Harness.ConfigFile == "" {
		return herrors.ConfigMissingField("harness.config_file")
	}
	if c.Harness.SettleDuration <= 0 {
		return herrors.ConfigInvalidValue("harness.settle_duration", c.Harness.SettleDuration, "must be positive")
	}
	if c.Launch.SettleBase < 0 || c.Launch.SettleJitter < 0 {
		return herrors.ConfigInvalidValue("launch", c.Launch, "settle durations must not be negative")
	}
	if c.Wait.Attempts < 1 {
		return herrors.ConfigInvalidValue("wait.attempts", c.Wait.Attempts, "must be at least 1")
	}
	if c.Wait.Interval < 0 {
		return herrors.ConfigInvalidValue("wait.interval", c.Wait.Interval, "must not be negative")
	}
	if c.IPC.Timeout <= 0 {
		return herrors.ConfigInvalidValue("ipc.timeout", c.IPC.Timeout, "must be positive")
	}
	if c.Runner.Jobs < 1 {
		return herrors.ConfigInvalidValue("runner.jobs", c.Runner.Jobs, "must be at least 1")
	}
	switch c.Runner.GUI {
	case GUIAll, GUIOnly, GUINever:
	default:
		return herrors.ConfigInvalidValue("runner.gui", c.Runner.GUI, "must be all, gui or nogui")
	}
	if c.Runner.ScenarioFile == "" {
		return herrors.ConfigMissingField("runner.scenario_file")
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return herrors.ConfigInvalidValue("logging.format", c.Logging.Format, "must be json or text")
	}
	return nil
}

// LogDir returns the absolute per-test log directory.
func (c *Config) LogDir(baseDir string) string {
	if filepath.IsAbs(c.Runner.LogDir) {
		return c.Runner.LogDir
	}
	return filepath.Join(baseDir, c.Runner.LogDir)
}

// HistoryPath returns the absolute history database path, or "" when history is disabled.
func (c *Config) HistoryPath(baseDir string) string {
	if c.History.Database == "" || filepath.IsAbs(c.History.Database) {
		return c.History.Database
	}
	return filepath.Join(baseDir, c.History.Database)
}

// LogFile returns the absolute harness log file path, or "" when file logging is off.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" || filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(baseDir, c.Logging.File)
}
