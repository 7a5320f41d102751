package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.API.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, ".sqlite/messages.db", cfg.Database.Path)
	assert.Empty(t, cfg.Enrich.URL)
	assert.Equal(t, 5*time.Second, cfg.Enrich.Timeout)
	assert.Equal(t, 1, cfg.Enrich.Attempts)
	assert.Equal(t, 100, cfg.Dispatch.MaxConcurrent)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RCFEED_API_PORT", "9090")
	t.Setenv("RCFEED_DB_DRIVER", "duckdb")
	t.Setenv("RCFEED_ENRICH_URL", "http://lookup.local/fetch")
	t.Setenv("RCFEED_ENRICH_TIMEOUT", "750ms")
	t.Setenv("RCFEED_ENRICH_ATTEMPTS", "3")
	t.Setenv("RCFEED_ENRICH_PROPERTIES", "user,flags")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.API.Port)
	assert.Equal(t, "duckdb", cfg.Database.Driver)
	assert.Equal(t, "http://lookup.local/fetch", cfg.Enrich.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Enrich.Timeout)
	assert.Equal(t, 3, cfg.Enrich.Attempts)
	assert.Equal(t, []string{"user", "flags"}, cfg.Enrich.Properties)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  port: "7070"
database:
  driver: sqlite3
  path: ""
dispatch:
  max_concurrent: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("RCFEED_MAX_CONCURRENT", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.API.Port)
	assert.Equal(t, 8, cfg.Dispatch.MaxConcurrent)
	assert.Equal(t, 1, cfg.Enrich.Attempts)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("RCFEED_ENRICH_ATTEMPTS", "0")

	_, err := Load("")
	assert.Error(t, err)
}

func TestDatabaseResolvedPath(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	rel, err := Database{Path: ".sqlite/messages.db"}.ResolvedPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(exe), ".sqlite", "messages.db"), rel)

	abs := filepath.Join(t.TempDir(), "messages.db")
	got, err := Database{Path: abs}.ResolvedPath()
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	for _, p := range []string{"", ":memory:"} {
		got, err := Database{Path: p}.ResolvedPath()
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
