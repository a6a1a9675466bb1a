package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/logging"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "wst",
	Short: "End-to-end regression tests for Wayfire",
	Long: `wst runs scripted regression tests against a Wayland compositor.

Each test directory holds a scenario.yaml and a compositor config. wst starts
a fresh compositor per test, drives it over its IPC socket and reports
OK, WRONG, GUI_WRONG, CRASHED or SKIPPED.

Configuration is read from ~/.config/wst/config.toml and ./wst.toml, or
from the file given with --config.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/wst/config.toml, ./wst.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("wst {{.Version}}\n")
}

// loadConfig returns the validated config and the directory relative paths resolve against.
func loadConfig() (*config.Config, string, error) {
	baseDir, err := os.Getwd()
	if err != nil {
		return nil, "", commandError("getting working directory", err)
	}

	var cfg *config.Config
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, "", commandError("reading config", err)
		}
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(baseDir)
	}
	if err != nil {
		return nil, "", commandError("loading config", err)
	}

	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", commandError("invalid config", err)
	}
	return cfg, baseDir, nil
}

// setupLogger builds the logger from config. The closer is never nil.
func setupLogger(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.NewFromConfig(cfg, baseDir)
	if err != nil {
		return nil, nil, commandError("opening log file", err)
	}
	if closer == nil {
		closer = nopCloser{}
	}
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
