package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentvc/core/database"
	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/server"
	"github.com/adalundhe/agentvc/core/store"
)

func newTestClient(t *testing.T) (*Client, *store.Store, *model.Session) {
	t.Helper()

	pool, err := database.Open(filepath.Join(t.TempDir(), "client.db"), database.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	st, err := store.New(context.Background(), pool)
	require.NoError(t, err)

	session := model.NewSession(t.TempDir())
	require.NoError(t, st.CreateSession(context.Background(), session))

	srv := httptest.NewServer(server.New(st, nil).Handler())
	t.Cleanup(srv.Close)

	return New(srv.URL, "test-agent"), st, session
}

func TestHealth(t *testing.T) {
	client, _, _ := newTestClient(t)
	assert.True(t, client.Health())
}

func TestHealthUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", "test-agent")
	assert.False(t, client.Health())
}

func TestFileCreated(t *testing.T) {
	client, _, session := newTestClient(t)

	change, err := client.FileCreated("src/lib.rs", "pub fn run() {}\n")
	require.NoError(t, err)

	assert.Equal(t, "create", change.ChangeType)
	assert.Equal(t, "src/lib.rs", change.Path)
	require.NotNil(t, change.ContentAfter)
	assert.Equal(t, "pub fn run() {}\n", *change.ContentAfter)
	assert.Nil(t, change.ContentBefore)
	assert.Equal(t, "test-agent", change.AgentID)
	assert.Equal(t, session.ID.String(), change.SessionID)
}

func TestFileModified(t *testing.T) {
	client, _, _ := newTestClient(t)

	change, err := client.FileModified("a.txt", "old\n", "new\n")
	require.NoError(t, err)

	assert.Equal(t, "modify", change.ChangeType)
	require.NotNil(t, change.ContentBefore)
	assert.Equal(t, "old\n", *change.ContentBefore)
	require.NotNil(t, change.ContentAfter)
	assert.Equal(t, "new\n", *change.ContentAfter)
}

func TestFileWritten(t *testing.T) {
	client, _, _ := newTestClient(t)

	created, err := client.FileWritten("a.txt", "v1\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "create", created.ChangeType)

	previous := "v1\n"
	modified, err := client.FileWritten("a.txt", "v2\n", &previous)
	require.NoError(t, err)
	assert.Equal(t, "modify", modified.ChangeType)
}

func TestFileDeleted(t *testing.T) {
	client, _, _ := newTestClient(t)

	prior := "doomed content\n"
	change, err := client.FileDeleted("old.txt", &prior)
	require.NoError(t, err)

	assert.Equal(t, "delete", change.ChangeType)
	require.NotNil(t, change.ContentBefore)
	assert.Equal(t, prior, *change.ContentBefore)
	assert.Nil(t, change.ContentAfter)
}

func TestCommitFlow(t *testing.T) {
	client, _, _ := newTestClient(t)

	_, err := client.FileCreated("a.txt", "a\n")
	require.NoError(t, err)
	_, err = client.FileCreated("b.txt", "b\n")
	require.NoError(t, err)

	pending, err := client.UncommittedChanges()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	commit, err := client.Commit("add files")
	require.NoError(t, err)
	assert.Equal(t, "add files", commit.Message)
	assert.Equal(t, "test-agent", commit.AgentID)
	assert.Len(t, commit.Changes, 2)

	pending, err = client.UncommittedChanges()
	require.NoError(t, err)
	assert.Empty(t, pending)

	infos, err := client.Commits()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, commit.ID, infos[0].Commit.ID)
	assert.Equal(t, 2, infos[0].ChangeCount)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, infos[0].FilesAffected)
}

func TestErrorsSurfaceServerMessage(t *testing.T) {
	client, st, session := newTestClient(t)

	session.End()
	require.NoError(t, st.EndSession(context.Background(), session))

	_, err := client.FileCreated("a.txt", "x\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
