// Package cmd implements the agentvc command line interface. Every command
// is a thin adapter over the engine in core/.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/storage"
	"github.com/adalundhe/agentvc/core/store"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "agentvc",
	Short: "Version control for AI agent changes",
	Long: `agentvc records filesystem changes made by agents inside a watched
workspace, groups them into commits, and can revert the workspace to a
prior committed state.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (defaults to ./.agentvc/agentvc.db)")
}

// resolveDBPath picks the database location: the --db flag if given,
// otherwise the metadata directory under the current workspace.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return storage.ResolveProjectDirs(cwd).Database, nil
}

// openStore opens the workspace store, failing with a hint when no session
// was ever started here.
func openStore(ctx context.Context) (*store.Store, error) {
	path, err := resolveDBPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no agentvc session found at %s (run 'agentvc start' first)", filepath.Dir(path))
	}

	return store.Open(ctx, path)
}
