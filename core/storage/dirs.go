// Package storage resolves the project-local metadata directory layout.
// Everything agentvc persists for a workspace lives under <root>/.agentvc/.
package storage

import (
	"os"
	"path/filepath"
)

// MetaDirName is the engine's metadata directory inside the workspace. It is
// always present in a session's ignore patterns so database writes never feed
// back into the event pipeline.
const MetaDirName = ".agentvc"

// ProjectDirs is the per-workspace directory layout.
type ProjectDirs struct {
	Root     string // <workspace>/.agentvc
	Database string // <workspace>/.agentvc/agentvc.db
	Config   string // <workspace>/.agentvc/config.yaml
	Locks    string // <workspace>/.agentvc/locks
}

// ResolveProjectDirs returns the metadata layout for the given workspace
// root. Nothing is created on disk.
func ResolveProjectDirs(workspaceRoot string) *ProjectDirs {
	metaDir := filepath.Join(workspaceRoot, MetaDirName)
	return &ProjectDirs{
		Root:     metaDir,
		Database: filepath.Join(metaDir, "agentvc.db"),
		Config:   filepath.Join(metaDir, "config.yaml"),
		Locks:    filepath.Join(metaDir, "locks"),
	}
}

// Exists reports whether the metadata directory has been initialized.
func (d *ProjectDirs) Exists() bool {
	info, err := os.Stat(d.Root)
	return err == nil && info.IsDir()
}

// EnsureDir creates a directory with the given permissions if needed.
func EnsureDir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
