package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProjectDirs(t *testing.T) {
	dirs := ResolveProjectDirs("/work/project")

	assert.Equal(t, filepath.Join("/work/project", ".agentvc"), dirs.Root)
	assert.Equal(t, filepath.Join(dirs.Root, "agentvc.db"), dirs.Database)
	assert.Equal(t, filepath.Join(dirs.Root, "config.yaml"), dirs.Config)
	assert.Equal(t, filepath.Join(dirs.Root, "locks"), dirs.Locks)
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	dirs := ResolveProjectDirs(root)

	assert.False(t, dirs.Exists())

	require.NoError(t, EnsureDir(dirs.Root, 0o755))
	assert.True(t, dirs.Exists())
}

func TestExistsFalseForFile(t *testing.T) {
	root := t.TempDir()
	dirs := ResolveProjectDirs(root)

	require.NoError(t, os.WriteFile(dirs.Root, []byte("not a dir"), 0o644))
	assert.False(t, dirs.Exists())
}

func TestEnsureDirIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(path, 0o755))
	require.NoError(t, EnsureDir(path, 0o755))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
