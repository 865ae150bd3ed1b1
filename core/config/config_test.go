package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.Debounce)
	assert.Contains(t, cfg.Watcher.IgnorePatterns, ".agentvc")
	assert.Contains(t, cfg.Watcher.IgnorePatterns, ".git")
	assert.Equal(t, "127.0.0.1:3030", cfg.Server.Listen)
	assert.Equal(t, "agentvc", cfg.Agent.ID)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialConfigMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watcher:\n  ignore_patterns: [vendor]\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"vendor"}, cfg.Watcher.IgnorePatterns)
	// Unset keys fall back.
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, "127.0.0.1:3030", cfg.Server.Listen)
	assert.Equal(t, "agentvc", cfg.Agent.ID)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watcher: [notamap"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Watcher.Debounce = 2 * time.Second
	cfg.Watcher.IgnorePatterns = []string{"dist", ".cache"}
	cfg.Server.Listen = "0.0.0.0:9000"
	cfg.Agent.ID = "worker-3"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
