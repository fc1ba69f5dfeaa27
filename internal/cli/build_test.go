package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fontrecipe/internal/engine"
	"github.com/roach88/fontrecipe/internal/testutil"
)

func newTestBuild(format string, fakes *testutil.FakeOps) *BuildOptions {
	return &BuildOptions{
		RootOptions: &RootOptions{Format: format},
		Registry:    fakes.Registry(),
		RunIDs:      testutil.NewFixedRunID("run-1"),
	}
}

func TestBuild_AllTargets(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	dir := filepath.Dir(path)
	opts := newTestBuild("text", testutil.NewFakeOps())

	out, err := execute(newBuildCommand(opts), path, "--db", filepath.Join(dir, "h.db"))
	require.NoError(t, err)

	assert.Equal(t, "run run-1: 4 succeeded, 0 failed, 0 skipped\n  ok out/A.ttf\n  ok out/B.ttf\n", out)

	data, err := os.ReadFile(filepath.Join(dir, "out", "A.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "source A.designspace\nbuildTTF\nfix\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, ".fontrecipe", "tmp"))
	if err == nil {
		assert.Empty(t, entries, "temporary artifacts are removed")
	}
}

func TestBuild_FailureSkipsOnlyDependents(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	opts := newTestBuild("text", testutil.NewFakeOps().Fail("autohint"))

	out, err := execute(newBuildCommand(opts), path, "--db", ":memory:")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeBuild)

	assert.Contains(t, out, "run run-1: 3 succeeded, 1 failed, 0 skipped\n")
	assert.Contains(t, out, "  ok out/A.ttf\n")
	assert.Contains(t, out, "  FAIL out/B.ttf\n")
	assert.Contains(t, out, "autohint: injected failure")
}

func TestBuild_SelectTarget(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	dir := filepath.Dir(path)
	fakes := testutil.NewFakeOps()

	out, err := execute(newBuildCommand(newTestBuild("text", fakes)), path,
		"--db", ":memory:", "--target", "out/A.ttf")
	require.NoError(t, err)

	assert.Contains(t, out, "2 succeeded")
	assert.NotContains(t, out, "out/B.ttf")
	assert.Equal(t, []string{"buildTTF", "fix"}, fakes.Names())
	assert.NoFileExists(t, filepath.Join(dir, "out", "B.ttf"))
}

func TestBuild_NoCleanupKeepsTemps(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	dir := filepath.Dir(path)

	_, err := execute(newBuildCommand(newTestBuild("text", testutil.NewFakeOps())), path,
		"--db", ":memory:", "--no-cleanup", "--temp-dir", "scratch")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one buildTTF temp per family")
}

func TestBuild_JSON(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	opts := newTestBuild("json", testutil.NewFakeOps().Fail("autohint"))

	out, err := execute(newBuildCommand(opts), path, "--db", ":memory:", "--jobs", "2")
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   BuildResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuild, resp.Error.Code)

	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, 3, resp.Data.Succeeded)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, map[string]engine.TargetStatus{
		"out/A.ttf": engine.TargetBuilt,
		"out/B.ttf": engine.TargetFailed,
	}, resp.Data.Targets)
	require.Len(t, resp.Data.Failures, 1)
	assert.Equal(t, "autohint", resp.Data.Failures[0].Op)
	assert.Equal(t, "out/B.ttf", resp.Data.Failures[0].Output)
}

func TestBuild_InvalidRecipe(t *testing.T) {
	path := writeRecipe(t, "out.ttf:\n  - operation: fix\n")

	out, err := execute(newBuildCommand(newTestBuild("text", testutil.NewFakeOps())), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestBuild_MissingConfig(t *testing.T) {
	_, err := execute(newBuildCommand(newTestBuild("text", testutil.NewFakeOps())), "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestBuild_RecordsHistory(t *testing.T) {
	path := writeRecipe(t, twoFamilies)
	db := filepath.Join(filepath.Dir(path), "history.db")

	_, err := execute(newBuildCommand(newTestBuild("text", testutil.NewFakeOps())), path, "--db", db)
	require.NoError(t, err)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "4 nodes, 0 failed, 0 skipped")

	out, err = execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "run run-1: succeeded\n")
	assert.Contains(t, out, "buildTTF -> ")
	assert.Contains(t, out, "fix -> out/A.ttf")

	out, err = execute(NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db, "run-1")
	require.NoError(t, err)
	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-1", resp.Data.ID)
	assert.Len(t, resp.Data.Nodes, 4)

	_, err = execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistory_MissingDatabase(t *testing.T) {
	_, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
