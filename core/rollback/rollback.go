// Package rollback restores the pre-commit on-disk state for every change a
// commit references. Rollback is not transactional across files: each change
// is applied independently and per-file failures are collected, not fatal.
package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/store"
)

// Action describes what rollback will do (or did) for one file.
type Action int

const (
	ActionRemove   Action = iota // undo a creation
	ActionRestore                // rewrite prior content
	ActionRecreate               // bring back a deleted file
	ActionRename                 // move back to the previous path
	ActionSkip                   // nothing to do (no captured prior content)
)

var actionNames = map[Action]string{
	ActionRemove:   "remove",
	ActionRestore:  "restore",
	ActionRecreate: "recreate",
	ActionRename:   "rename",
	ActionSkip:     "skip",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Step is the planned or executed action for one change.
type Step struct {
	ChangeID uuid.UUID
	Path     string
	Action   Action
	Err      error
}

// Report summarizes a rollback run. Partial rollback is an accepted, reported
// outcome.
type Report struct {
	CommitID  uuid.UUID
	Executed  bool
	Steps     []Step
	Succeeded int
	Failed    int
}

// Failures returns the (path, error) pairs for steps that failed.
func (r *Report) Failures() []Step {
	var failed []Step
	for _, step := range r.Steps {
		if step.Err != nil {
			failed = append(failed, step)
		}
	}
	return failed
}

// Engine reverts committed changes against the session's workspace root.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

func NewEngine(st *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, logger: logger}
}

// Plan reports the per-file action for commitID without touching the
// filesystem. Change ids that no longer resolve are dropped, matching how
// commit summaries are derived.
func (e *Engine) Plan(ctx context.Context, commitID uuid.UUID) (*Report, error) {
	commit, _, changes, err := e.resolve(ctx, commitID)
	if err != nil {
		return nil, err
	}

	report := &Report{CommitID: commit.ID}
	for _, change := range changes {
		report.Steps = append(report.Steps, Step{
			ChangeID: change.ID,
			Path:     change.Path,
			Action:   planAction(change),
		})
	}
	return report, nil
}

// Execute applies the rollback for every change in the commit, continuing
// past per-file failures.
func (e *Engine) Execute(ctx context.Context, commitID uuid.UUID) (*Report, error) {
	commit, root, changes, err := e.resolve(ctx, commitID)
	if err != nil {
		return nil, err
	}

	report := &Report{CommitID: commit.ID, Executed: true}
	for _, change := range changes {
		step := Step{
			ChangeID: change.ID,
			Path:     change.Path,
			Action:   planAction(change),
		}

		if err := applyChange(change, root); err != nil {
			step.Err = err
			report.Failed++
			e.logger.Error("rollback failed",
				"path", change.Path,
				"kind", change.Kind.String(),
				"error", err)
		} else {
			report.Succeeded++
		}
		report.Steps = append(report.Steps, step)
	}

	return report, nil
}

func (e *Engine) resolve(ctx context.Context, commitID uuid.UUID) (*model.Commit, string, []*model.Change, error) {
	commit, err := e.store.GetCommit(ctx, commitID)
	if err != nil {
		return nil, "", nil, err
	}

	session, err := e.store.GetSession(ctx, commit.SessionID)
	if err != nil {
		return nil, "", nil, err
	}

	changes := make([]*model.Change, 0, len(commit.Changes))
	for _, id := range commit.Changes {
		change, err := e.store.GetChange(ctx, id)
		if err != nil {
			continue
		}
		changes = append(changes, change)
	}

	return commit, session.RootPath, changes, nil
}

func planAction(change *model.Change) Action {
	switch change.Kind {
	case model.ChangeCreate:
		return ActionRemove
	case model.ChangeModify:
		if change.ContentBefore == nil {
			return ActionSkip
		}
		return ActionRestore
	case model.ChangeDelete:
		if change.ContentBefore == nil {
			return ActionSkip
		}
		return ActionRecreate
	case model.ChangeRename:
		return ActionRename
	default:
		return ActionSkip
	}
}

// applyChange restores the prior state for one change, relative to root.
func applyChange(change *model.Change, root string) error {
	fullPath := filepath.Join(root, change.Path)

	switch change.Kind {
	case model.ChangeCreate:
		if _, err := os.Stat(fullPath); err == nil {
			if err := os.Remove(fullPath); err != nil {
				return fmt.Errorf("remove %s: %w", change.Path, err)
			}
		}

	case model.ChangeModify:
		if change.ContentBefore == nil {
			return nil
		}
		if err := os.WriteFile(fullPath, change.ContentBefore, 0o644); err != nil {
			return fmt.Errorf("restore %s: %w", change.Path, err)
		}

	case model.ChangeDelete:
		if change.ContentBefore == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return fmt.Errorf("recreate %s: %w", change.Path, err)
		}
		if err := os.WriteFile(fullPath, change.ContentBefore, 0o644); err != nil {
			return fmt.Errorf("recreate %s: %w", change.Path, err)
		}

	case model.ChangeRename:
		if change.OldPath == "" {
			return nil
		}
		if _, err := os.Stat(fullPath); err == nil {
			oldFull := filepath.Join(root, change.OldPath)
			if err := os.Rename(fullPath, oldFull); err != nil {
				return fmt.Errorf("rename %s back to %s: %w", change.Path, change.OldPath, err)
			}
		}
	}

	return nil
}
