package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

// writeScenarioDir writes a scenario using types into a new directory.
func writeScenarioDir(t *testing.T, types, name, assertions string) string {
	t.Helper()
	dir := t.TempDir()
	content := "name: " + name + "\n" +
		"description: edits one article\n" +
		"types: " + types + "\n" +
		"steps:\n" +
		"  - {op: create, record: a, type: article, label: First}\n" +
		"  - {op: start, record: a}\n" +
		"  - {op: set_key, record: a, key: views, value: 4}\n" +
		"  - {op: end, record: a}\n" +
		assertions
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644))
	return dir
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "test", harnessScenarios, "--golden", harnessGolden)
	assert.Contains(t, out, "✓ copy_revision")
	assert.Contains(t, out, "✓ veto_and_rollback")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "test", harnessScenarios, "--golden", harnessGolden, "--format", "json")
	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Data.Total)
	for _, s := range resp.Data.Scenarios {
		assert.True(t, s.Pass, s.Name)
		assert.Equal(t, "match", s.Golden, s.Name)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "test", harnessScenarios, "--golden", harnessGolden, "--filter", "copy_*")
	assert.Contains(t, out, "✓ copy_revision")
	assert.NotContains(t, out, "create_and_edit")
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	env := newTestEnv(t)
	dir := writeScenarioDir(t, env.types, "edit_views", "")

	out := env.mustRun(t, "test", dir, "--update")
	assert.Contains(t, out, "✓ edit_views (golden updated)")

	golden := filepath.Join(dir, "golden", "edit_views.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"edit_views"`)

	out = env.mustRun(t, "test", dir, "--format", "json")
	resp := decodeResponse[TestResult](t, out)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	env := newTestEnv(t)
	dir := writeScenarioDir(t, env.types, "edit_views", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "edit_views.golden"), []byte(`{}`), 0644))

	out, _, err := env.run(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ edit_views")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	env := newTestEnv(t)
	dir := writeScenarioDir(t, env.types, "wrong_count", "assertions:\n  - {type: revision_count, record: a, count: 5}\n")

	out, _, err := env.run(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, "missing", resp.Data.Scenarios[0].Golden)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, _, err := env.run(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out := env.mustRun(t, "test", t.TempDir())
	assert.Contains(t, out, "No scenarios found.")

	_, _, err = env.run(t, "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
