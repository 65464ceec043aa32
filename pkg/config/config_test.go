package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.InMemory)
	assert.Equal(t, 1000, cfg.SpinYieldThreshold)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/nogdb\nin_memory: false\nsync_writes: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/nogdb", cfg.DataDir)
	assert.False(t, cfg.InMemory)
	assert.True(t, cfg.SyncWrites)
}

func TestLoadConfigOrDefaultFallsBackWhenMissing(t *testing.T) {
	cfg := LoadConfigOrDefault("/nonexistent/path.yaml")
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/nogdb\nin_memory: false\n"), 0o644))

	t.Setenv("NOGDB_DATA_DIR", "/override/path")
	t.Setenv("NOGDB_SPIN_YIELD_THRESHOLD", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/override/path", cfg.DataDir)
	assert.Equal(t, 42, cfg.SpinYieldThreshold)
	assert.False(t, cfg.InMemory, "env did not override in_memory, file value should stick")
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
