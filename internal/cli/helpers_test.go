package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTypesCUE = `package types

type: article: {
	data_keys: {
		title: *"" | string
		views: *0 | int
	}
	parts: ["related_items"]
	states: ["draft", "published"]
}

type: page: data_keys: body: *"" | string
`

// writeTypesDir writes the test record types to a new directory.
func writeTypesDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "types")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.cue"), []byte(testTypesCUE), 0644))
	return dir
}

// testEnv is a workspace with a config file pointing at a fresh database
// and the test types.
type testEnv struct {
	dir    string
	types  string
	db     string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, name := range []string{"APPFRAME_DB", "APPFRAME_TYPES_DIR", "APPFRAME_ADDR", "APPFRAME_LOG_LEVEL", "APPFRAME_LOG_FORMAT"} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	e := &testEnv{
		dir:    dir,
		types:  writeTypesDir(t),
		db:     filepath.Join(dir, "appframe.db"),
		config: filepath.Join(dir, "appframe.yaml"),
	}
	e.writeConfig(t, "warn")
	return e
}

func (e *testEnv) writeConfig(t *testing.T, level string) {
	t.Helper()
	content := "database:\n  path: " + e.db + "\n" +
		"types:\n  dir: " + e.types + "\n" +
		"logging:\n  level: " + level + "\n  format: console\n"
	require.NoError(t, os.WriteFile(e.config, []byte(content), 0644))
}

// run executes the root command with args and the env's config.
func (e *testEnv) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", e.config))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// mustRun is run for commands expected to succeed.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(t, args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", out, errOut)
	return out
}

// response is CLIResponse with typed data.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
