package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/agentvc/core/config"
	"github.com/adalundhe/agentvc/core/database"
	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/server"
	"github.com/adalundhe/agentvc/core/storage"
	"github.com/adalundhe/agentvc/core/store"
	"github.com/adalundhe/agentvc/core/watcher"
)

var startListen string

var startCmd = &cobra.Command{
	Use:   "start [path]",
	Short: "Start tracking changes in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startListen, "listen", "", "API listen address (defaults to config or 127.0.0.1:3030)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	dirs := storage.ResolveProjectDirs(absRoot)
	if err := storage.EnsureDir(dirs.Root, 0o755); err != nil {
		return err
	}

	cfg, err := config.Load(dirs.Config)
	if err != nil {
		return err
	}
	listen := cfg.Server.Listen
	if startListen != "" {
		listen = startListen
	}

	// One tracking process per workspace.
	lock, err := database.NewAdvisoryLock(dirs.Locks, "workspace")
	if err != nil {
		return err
	}
	held, err := lock.TryAcquire()
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("another agentvc process is already tracking %s", absRoot)
	}
	defer lock.Release()

	path := dirs.Database
	if dbPath != "" {
		path = dbPath
	}
	st, err := store.Open(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer st.Close()

	session := model.NewSession(absRoot).WithIgnorePatterns(cfg.Watcher.IgnorePatterns)
	if err := st.CreateSession(cmd.Context(), session); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pipeline, err := watcher.New(session, st, watcher.Config{
		Debounce: cfg.Watcher.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("Tracking %s\n", absRoot)
	fmt.Printf("  Session:  %s\n", session.ID)
	fmt.Printf("  Database: %s\n", path)
	fmt.Printf("  API:      http://%s\n", listen)
	fmt.Println("Press Ctrl+C to stop")

	srv := server.New(st, logger)
	serveErr := srv.Serve(ctx, listen)

	// Deterministic shutdown: stop the pipeline, then close out the session.
	pipeline.Stop()
	session.End()
	if err := st.EndSession(cmd.Context(), session); err != nil {
		logger.Error("end session failed", "error", err)
	}

	return serveErr
}
