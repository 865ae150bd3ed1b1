package model

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChange(t *testing.T) {
	sessionID := uuid.New()
	change := NewChange(ChangeCreate, "test.txt", sessionID)

	assert.Equal(t, ChangeCreate, change.Kind)
	assert.Equal(t, "test.txt", change.Path)
	assert.Equal(t, sessionID, change.SessionID)
	assert.NotEqual(t, uuid.Nil, change.ID)
	assert.False(t, change.Timestamp.IsZero())
	assert.NotNil(t, change.Metadata)
}

func TestChangeContentHashing(t *testing.T) {
	content := []byte("Hello, World!")
	change := NewChange(ChangeCreate, "test.txt", uuid.New()).
		WithContentAfter(content)

	require.NotNil(t, change.ContentAfter)
	require.NotEmpty(t, change.ContentHashAfter)

	// The stored hash must match a recomputation over the stored bytes.
	sum := sha256.Sum256(change.ContentAfter)
	assert.Equal(t, hex.EncodeToString(sum[:]), change.ContentHashAfter)
}

func TestChangeBuilders(t *testing.T) {
	change := NewChange(ChangeRename, "new.txt", uuid.New()).
		WithOldPath("old.txt").
		WithAgentID("agent-1").
		WithMetadata("reason", "refactor")

	assert.Equal(t, "old.txt", change.OldPath)
	assert.Equal(t, "agent-1", change.AgentID)
	assert.Equal(t, "refactor", change.Metadata["reason"])
}

func TestNewCommit(t *testing.T) {
	sessionID := uuid.New()
	changeIDs := []uuid.UUID{uuid.New(), uuid.New()}

	commit := NewCommit("Initial commit", "test-agent", changeIDs, sessionID)

	assert.Equal(t, "Initial commit", commit.Message)
	assert.Equal(t, "test-agent", commit.AgentID)
	assert.Equal(t, changeIDs, commit.Changes)
	assert.Nil(t, commit.Parent)

	parent := uuid.New()
	commit.WithParent(parent)
	require.NotNil(t, commit.Parent)
	assert.Equal(t, parent, *commit.Parent)
}

func TestNewSession(t *testing.T) {
	session := NewSession("/test/path")

	assert.Equal(t, "/test/path", session.RootPath)
	assert.True(t, session.Active)
	assert.Nil(t, session.Ended)
	assert.NotEmpty(t, session.IgnorePatterns)
	assert.Contains(t, session.IgnorePatterns, ".agentvc")
}

func TestSessionEnd(t *testing.T) {
	session := NewSession("/test/path")
	session.End()

	assert.False(t, session.Active)
	require.NotNil(t, session.Ended)
	assert.False(t, session.Ended.Before(session.Started))
}

func TestParseChangeKind(t *testing.T) {
	for _, kind := range []ChangeKind{ChangeCreate, ChangeModify, ChangeDelete, ChangeRename} {
		parsed, ok := ParseChangeKind(kind.String())
		require.True(t, ok, kind.String())
		assert.Equal(t, kind, parsed)
	}

	_, ok := ParseChangeKind("truncate")
	assert.False(t, ok)
}
