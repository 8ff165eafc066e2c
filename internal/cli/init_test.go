package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/config"
)

func TestInitCreatesDatabase(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "init", "--format", "json")
	resp := decodeResponse[InitResult](t, out)
	assert.Equal(t, env.db, resp.Data.Database)
	assert.Positive(t, resp.Data.SchemaVersion)
	assert.Empty(t, resp.Data.ConfigWritten)

	_, err := os.Stat(env.db)
	require.NoError(t, err)

	out = env.mustRun(t, "init")
	assert.Contains(t, out, "✓ Database "+env.db+" at schema version")
}

func TestInitWriteConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(env.config))
	t.Setenv("APPFRAME_DB", env.db)

	out := env.mustRun(t, "init", "--write-config")
	assert.Contains(t, out, "✓ Wrote config "+env.config)

	cfg, err := config.Load(env.config)
	require.NoError(t, err)
	assert.Equal(t, env.db, cfg.Database.Path)

	out = env.mustRun(t, "init", "--write-config")
	assert.NotContains(t, out, "Wrote config", "an existing config is left unchanged")
}
