package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/wfharness/wst/internal/testutil"
)

// resetFlags restores every flag to its default so commands can run again.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config with fast timings and a private runtime dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	runtimeDir := testutil.ShortTempDir(t)
	content := `
[harness]
runtime_dir = "` + runtimeDir + `"
settle_duration = "10ms"

[launch]
settle_base = "300ms"
settle_jitter = "0s"

[wait]
interval = "10ms"

[logging]
level = "error"
` + extra
	return testutil.WriteFile(t, t.TempDir(), "wst.toml", content)
}

// useFakeCompositor makes spawned compositors run as the fake and returns its path.
func useFakeCompositor(t *testing.T) string {
	t.Helper()
	t.Setenv(fakeCompositorEnv, "1")
	self, err := os.Executable()
	require.NoError(t, err)
	return self
}

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func writeSuite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTestDir(t, root, "basic/one-client", `
name: one-client
description: a client opens and closes
steps:
  - run: sleep 30
    as: client
  - wait_clients: 1
  - expect_views: [sleep]
  - kill: client
  - wait_clients: 0
`)
	testutil.WriteTestDir(t, root, "gui/screenshot", `
name: screenshot
gui: true
requires: [definitely-not-installed-client]
steps:
  - screenshot: final
`)
	return root
}

func logDirFlag(t *testing.T) string {
	return "--logdir=" + filepath.Join(t.TempDir(), "logs")
}
