// Package watcher is the event pipeline: it converts raw filesystem
// notifications under a session root into recorded changes. Events are
// buffered and flushed in batches after a quiet period so rapid successive
// writes collapse into a bounded number of flush cycles; ignored paths are
// filtered by substring match against the session's patterns.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/store"
)

// DefaultDebounce is the quiet period after which buffered events flush.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("pipeline already started")

	// ErrRootNotDirectory indicates the session root is not a directory.
	ErrRootNotDirectory = errors.New("session root is not a directory")
)

// Config configures the event pipeline for one session.
type Config struct {
	// Debounce overrides the flush quiet period. Zero means DefaultDebounce.
	Debounce time.Duration

	// Logger receives watch errors and per-change persist failures.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Pipeline watches one session's root and appends change records through the
// store. It runs two goroutines: a collector that buffers and debounces raw
// events, and a processor that classifies and persists flushed batches one at
// a time.
type Pipeline struct {
	session  *model.Session
	store    *store.Store
	debounce time.Duration
	logger   *slog.Logger

	fsw     *fsnotify.Watcher
	batchCh chan []fsnotify.Event

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a pipeline for session, writing through st.
func New(session *model.Session, st *store.Store, config Config) (*Pipeline, error) {
	info, err := os.Stat(session.RootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrRootNotDirectory
	}

	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		session:  session,
		store:    st,
		debounce: config.Debounce,
		logger:   config.Logger,
		fsw:      fsw,
		batchCh:  make(chan []fsnotify.Event, 16),
	}, nil
}

// Start subscribes recursively to the session root and begins processing.
// The pipeline runs until ctx is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if err := p.addDirectoryRecursive(p.session.RootPath); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.collect(runCtx)
	}()
	go func() {
		defer wg.Done()
		p.process(runCtx)
	}()
	go func() {
		wg.Wait()
		close(p.done)
	}()

	p.logger.Info("watching",
		"root", p.session.RootPath,
		"session", p.session.ID.String(),
		"debounce", p.debounce)

	return nil
}

// Stop shuts the pipeline down deterministically: the underlying watcher is
// closed, both goroutines exit, and Stop returns once they have. Safe to call
// multiple times.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return
	}

	p.stopOnce.Do(func() {
		p.cancel()
		p.fsw.Close()
		<-p.done
	})
}

// addDirectoryRecursive watches root and every non-ignored subdirectory.
func (p *Pipeline) addDirectoryRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && p.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return p.fsw.Add(path)
	})
}

// collect buffers raw events and flushes them as one batch after the quiet
// period elapses without new events.
func (p *Pipeline) collect(ctx context.Context) {
	timer := time.NewTimer(p.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var batch []fsnotify.Event

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.fsw.Events:
			if !ok {
				return
			}
			// New directories join the recursive watch.
			if event.Has(fsnotify.Create) {
				p.maybeWatchNewDirectory(event.Name)
			}
			batch = append(batch, event)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.debounce)

		case err, ok := <-p.fsw.Errors:
			if !ok {
				return
			}
			// Non-fatal: log and keep watching.
			p.logger.Error("watch error", "error", err)

		case <-timer.C:
			if len(batch) == 0 {
				continue
			}
			select {
			case p.batchCh <- batch:
				batch = nil
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pipeline) maybeWatchNewDirectory(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if p.shouldIgnore(path) {
		return
	}
	_ = p.addDirectoryRecursive(path)
}

// process drains flushed batches sequentially for the lifetime of the
// session, writing each classified change through the store.
func (p *Pipeline) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-p.batchCh:
			for _, event := range batch {
				p.handleEvent(ctx, event)
			}
		}
	}
}

// handleEvent classifies a single event and persists the resulting change.
// Persistence failures are logged and do not abort the rest of the batch.
func (p *Pipeline) handleEvent(ctx context.Context, event fsnotify.Event) {
	if p.shouldIgnore(event.Name) {
		return
	}

	change := p.classify(event)
	if change == nil {
		return
	}

	if err := p.store.CreateChange(ctx, change); err != nil {
		p.logger.Error("persist change failed",
			"path", change.Path,
			"kind", change.Kind.String(),
			"error", err)
		return
	}

	p.logger.Debug("recorded change",
		"path", change.Path,
		"kind", change.Kind.String())
}

// classify maps an fsnotify event to a change record. Creates and writes get
// a best-effort content-after capture; removes carry no content (the file is
// already gone). Other event kinds produce no change.
func (p *Pipeline) classify(event fsnotify.Event) *model.Change {
	rel := p.relPath(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		change := model.NewChange(model.ChangeCreate, rel, p.session.ID)
		if content, err := os.ReadFile(event.Name); err == nil {
			change.WithContentAfter(content)
		}
		return change

	case event.Has(fsnotify.Write):
		change := model.NewChange(model.ChangeModify, rel, p.session.ID)
		if content, err := os.ReadFile(event.Name); err == nil {
			change.WithContentAfter(content)
		}
		return change

	case event.Has(fsnotify.Remove):
		return model.NewChange(model.ChangeDelete, rel, p.session.ID)

	default:
		return nil
	}
}

// shouldIgnore reports whether the root-relative form of path contains any of
// the session's ignore patterns as a substring.
func (p *Pipeline) shouldIgnore(path string) bool {
	rel := p.relPath(path)
	for _, pattern := range p.session.IgnorePatterns {
		if strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

func (p *Pipeline) relPath(path string) string {
	rel, err := filepath.Rel(p.session.RootPath, path)
	if err != nil {
		return path
	}
	return rel
}
