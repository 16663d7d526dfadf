package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/plandeck/internal/apperr"
)

func TestLoad_CreatesDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	t.Setenv("PLANDECK_CONFIG", path)
	t.Setenv("PLANDECK_DB", "")
	t.Setenv("PLANDECK_LOG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.True(t, cfg.LogUseCases)

	_, err = os.Stat(path)
	assert.NoError(t, err, "config file should be written on first load")
}

func TestLoad_ReadsFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database_path = \"/srv/plandeck/core.db\"\nlog_use_cases = false\n"), 0644))
	t.Setenv("PLANDECK_CONFIG", path)
	t.Setenv("PLANDECK_DB", "")
	t.Setenv("PLANDECK_LOG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/plandeck/core.db", cfg.DatabasePath)
	assert.False(t, cfg.LogUseCases)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database_path = \"/srv/plandeck/core.db\"\n"), 0644))
	t.Setenv("PLANDECK_CONFIG", path)
	t.Setenv("PLANDECK_DB", "/tmp/override.db")
	t.Setenv("PLANDECK_LOG", "/tmp/plandeck.log")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath)
	assert.Equal(t, "/tmp/plandeck.log", cfg.LogPath)
	assert.True(t, cfg.LogUseCases)
}

func TestLoad_MalformedFileIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("database_path = [not toml"), 0644))
	t.Setenv("PLANDECK_CONFIG", path)

	_, err := Load()
	assert.ErrorIs(t, err, apperr.ErrConfig)
}
