package cmd

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfharness/wst/internal/runner"
	"github.com/wfharness/wst/internal/status"
	"github.com/wfharness/wst/internal/testutil"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(&ExitError{Code: ExitFailure, Message: "1 test(s) failed"}))
	assert.Equal(t, ExitCommandError, ExitCode(errors.New("unknown flag: --bogus")))
	assert.Equal(t, ExitCommandError, ExitCode(commandError("loading tests", errors.New("x"))))
}

func TestRun_PassAndSkip(t *testing.T) {
	compositor := useFakeCompositor(t)
	cfg := writeConfig(t, "")
	root := writeSuite(t)

	out, err := execute(t, "run", "--config", cfg, "--compositor", compositor, "--no-color", logDirFlag(t), root)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ OK        basic/one-client")
	assert.Contains(t, out, "⊘ SKIPPED   gui/screenshot")
	assert.Contains(t, out, "Missing definitely-not-installed-client (Did you compile test clients?)")
	assert.Contains(t, out, "2 test(s): 1 ok, 1 skipped")
}

func TestRun_FailureExitCode(t *testing.T) {
	compositor := useFakeCompositor(t)
	cfg := writeConfig(t, "")
	root := t.TempDir()
	testutil.WriteTestDir(t, root, "closes-all", `
name: closes-all
steps:
  - run: sleep 30
  - wait_clients: 1
  - expect_view_count: 0
    message: Not all views were closed?
`)

	out, err := execute(t, "run", "--config", cfg, "--compositor", compositor, "--no-color", logDirFlag(t), root)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Equal(t, "1 test(s) failed", err.Error())
	assert.Contains(t, out, "✗ WRONG     closes-all")
	assert.Contains(t, out, `Not all views were closed?: ["sleep"]`)
}

func TestRun_JSONAndHistory(t *testing.T) {
	compositor := useFakeCompositor(t)
	cfg := writeConfig(t, "")
	root := writeSuite(t)
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "run", "--config", cfg, "--compositor", compositor, "--format", "json",
		"--gui", "nogui", "--db", db, logDirFlag(t), root)
	require.NoError(t, err, out)

	var report runner.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, "basic/one-client", report.Results[0].Name)
	assert.Equal(t, status.OK, report.Results[0].Outcome.Status)
	assert.NotEmpty(t, report.RunID)

	out, err = execute(t, "history", "--config", cfg, "--db", db, "--json")
	require.NoError(t, err, out)

	var records []struct {
		RunID   string         `json:"run_id"`
		Name    string         `json:"name"`
		Outcome status.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, report.RunID, records[0].RunID)
	assert.Equal(t, status.OK, records[0].Outcome.Status)

	out, err = execute(t, "history", "--config", cfg, "--db", db, "--no-color", "--test", "basic/one-client")
	require.NoError(t, err)
	assert.Contains(t, out, "basic/one-client")
	assert.Contains(t, out, "OK")
}

func TestRun_CommandErrors(t *testing.T) {
	cfg := writeConfig(t, "")
	root := writeSuite(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing compositor flag", []string{"run", "--config", cfg, root}},
		{"compositor not found", []string{"run", "--config", cfg, "--compositor", "/nonexistent/wayfire", root}},
		{"bad format", []string{"run", "--config", cfg, "--compositor", "/bin/sh", "--format", "xml", root}},
		{"bad gui filter", []string{"run", "--config", cfg, "--compositor", "/bin/sh", "--gui", "sometimes", root}},
		{"bad glob", []string{"run", "--config", cfg, "--compositor", "/bin/sh", "--include", "[", root}},
		{"missing config", []string{"run", "--config", "/nonexistent/wst.toml", "--compositor", "/bin/sh", root}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, ExitCode(err), "got %v", err)
		})
	}
}

func TestRun_InvalidScenario(t *testing.T) {
	cfg := writeConfig(t, "")
	root := t.TempDir()
	testutil.WriteTestDir(t, root, "broken", "name: broken\nsteps:\n  - teleport: [1, 2]\n")

	_, err := execute(t, "run", "--config", cfg, "--compositor", "/bin/sh", root)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, err.Error(), "teleport")
}

func TestRun_NoTests(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "run", "--config", cfg, "--compositor", "/bin/sh", logDirFlag(t), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No tests run")
}

func TestList(t *testing.T) {
	cfg := writeConfig(t, "")
	root := writeSuite(t)

	out, err := execute(t, "list", "--config", cfg, root)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "basic/one-client")
	assert.Contains(t, out, "a client opens and closes")
	assert.Contains(t, out, "gui/screenshot")

	out, err = execute(t, "list", "--config", cfg, "--json", root)
	require.NoError(t, err)
	var listed []listedTest
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 2)
	assert.False(t, listed[0].GUI)
	assert.True(t, listed[1].GUI)
	assert.Equal(t, []string{"definitely-not-installed-client"}, listed[1].Requires)
}

func TestList_ConfigFilters(t *testing.T) {
	cfg := writeConfig(t, "\n[runner]\ngui = \"gui\"\n")
	root := writeSuite(t)

	out, err := execute(t, "list", "--config", cfg, "--json", root)
	require.NoError(t, err)
	var listed []listedTest
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "gui/screenshot", listed[0].Name)
}

func TestList_DefaultsToWorkingDir(t *testing.T) {
	cfg := writeConfig(t, "")
	chdir(t, writeSuite(t))

	out, err := execute(t, "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "basic/one-client")
}

func TestHistory_NoDatabase(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "history", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, err.Error(), "no history database")
}

func TestHistory_Empty(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "history", "--config", cfg, "--db", filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No history")
}
