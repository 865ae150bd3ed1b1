package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentvc/core/database"
	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/store"
)

type fixture struct {
	root    string
	store   *store.Store
	session *model.Session
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()

	pool, err := database.Open(filepath.Join(root, ".agentvc", "test.db"), database.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	st, err := store.New(context.Background(), pool)
	require.NoError(t, err)

	session := model.NewSession(root)
	require.NoError(t, st.CreateSession(context.Background(), session))

	return &fixture{
		root:    root,
		store:   st,
		session: session,
		engine:  NewEngine(st, nil),
	}
}

func (f *fixture) commit(t *testing.T, changes ...*model.Change) *model.Commit {
	t.Helper()
	ctx := context.Background()

	ids := make([]uuid.UUID, 0, len(changes))
	for _, change := range changes {
		require.NoError(t, f.store.CreateChange(ctx, change))
		ids = append(ids, change.ID)
	}

	commit := model.NewCommit("test", "agent", ids, f.session.ID)
	require.NoError(t, f.store.CreateCommit(ctx, commit))
	return commit
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	full := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestExecuteRestoresModifiedFile(t *testing.T) {
	f := newFixture(t)

	full := f.write(t, "main.txt", "Hello\nRust\nWorld\n")

	change := model.NewChange(model.ChangeModify, "main.txt", f.session.ID).
		WithContentBefore([]byte("Hello\nWorld\n")).
		WithContentAfter([]byte("Hello\nRust\nWorld\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)

	assert.True(t, report.Executed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)

	restored, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld\n", string(restored))
}

func TestExecuteRemovesCreatedFile(t *testing.T) {
	f := newFixture(t)

	full := f.write(t, "fresh.txt", "new content\n")

	change := model.NewChange(model.ChangeCreate, "fresh.txt", f.session.ID).
		WithContentAfter([]byte("new content\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)

	// The file was created and then removed again before rollback ran.
	change := model.NewChange(model.ChangeCreate, "gone.txt", f.session.ID).
		WithContentAfter([]byte("short-lived\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
}

func TestExecuteRecreatesDeletedFile(t *testing.T) {
	f := newFixture(t)

	change := model.NewChange(model.ChangeDelete, "nested/dir/lost.txt", f.session.ID).
		WithContentBefore([]byte("precious data\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	// Parent directories are recreated as needed.
	restored, err := os.ReadFile(filepath.Join(f.root, "nested/dir/lost.txt"))
	require.NoError(t, err)
	assert.Equal(t, "precious data\n", string(restored))
}

func TestExecuteRenamesBack(t *testing.T) {
	f := newFixture(t)

	f.write(t, "renamed.txt", "contents\n")

	change := model.NewChange(model.ChangeRename, "renamed.txt", f.session.ID).
		WithOldPath("original.txt")
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	_, err = os.Stat(filepath.Join(f.root, "renamed.txt"))
	assert.True(t, os.IsNotExist(err))

	restored, err := os.ReadFile(filepath.Join(f.root, "original.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contents\n", string(restored))
}

func TestExecuteSkipsModifyWithoutPriorContent(t *testing.T) {
	f := newFixture(t)

	full := f.write(t, "keep.txt", "current state\n")

	change := model.NewChange(model.ChangeModify, "keep.txt", f.session.ID).
		WithContentAfter([]byte("current state\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)

	require.Len(t, report.Steps, 1)
	assert.Equal(t, ActionSkip, report.Steps[0].Action)

	// Nothing to restore, so the file is untouched.
	current, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "current state\n", string(current))
}

func TestPlanDoesNotTouchFilesystem(t *testing.T) {
	f := newFixture(t)

	full := f.write(t, "planned.txt", "after\n")

	change := model.NewChange(model.ChangeModify, "planned.txt", f.session.ID).
		WithContentBefore([]byte("before\n")).
		WithContentAfter([]byte("after\n"))
	commit := f.commit(t, change)

	report, err := f.engine.Plan(context.Background(), commit.ID)
	require.NoError(t, err)

	assert.False(t, report.Executed)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, ActionRestore, report.Steps[0].Action)
	assert.Equal(t, "planned.txt", report.Steps[0].Path)

	current, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(current))
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	f := newFixture(t)

	good := f.write(t, "good.txt", "after\n")

	// Restoring under a path blocked by a regular file fails for that step
	// only.
	f.write(t, "blocked", "not a directory\n")

	goodChange := model.NewChange(model.ChangeModify, "good.txt", f.session.ID).
		WithContentBefore([]byte("before\n")).
		WithContentAfter([]byte("after\n"))
	badChange := model.NewChange(model.ChangeModify, "blocked/inner.txt", f.session.ID).
		WithContentBefore([]byte("before\n")).
		WithContentAfter([]byte("after\n"))
	commit := f.commit(t, goodChange, badChange)

	report, err := f.engine.Execute(context.Background(), commit.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "blocked/inner.txt", failures[0].Path)
	assert.Error(t, failures[0].Err)

	restored, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(restored))
}

func TestRollbackUnknownCommit(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Plan(context.Background(), uuid.New())
	assert.True(t, store.IsNotFound(err))

	_, err = f.engine.Execute(context.Background(), uuid.New())
	assert.True(t, store.IsNotFound(err))
}
