// Package model defines the entities tracked by agentvc: sessions, changes,
// commits and the derived commit summaries. A Session anchors one watched
// workspace, a Change records one observed filesystem mutation, and a Commit
// is an immutable named grouping of changes with a linear parent link.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ChangeKind classifies a recorded filesystem mutation. The set is closed;
// every consumer switches exhaustively over these four values.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeModify
	ChangeDelete
	ChangeRename
)

var changeKindNames = map[ChangeKind]string{
	ChangeCreate: "create",
	ChangeModify: "modify",
	ChangeDelete: "delete",
	ChangeRename: "rename",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseChangeKind converts the wire/storage form back to a ChangeKind.
// Returns false for anything outside the closed set.
func ParseChangeKind(s string) (ChangeKind, bool) {
	for kind, name := range changeKindNames {
		if name == s {
			return kind, true
		}
	}
	return 0, false
}

// DefaultIgnorePatterns are matched as substrings of the root-relative path.
// The engine's own metadata directory is always excluded so that writing the
// database does not feed events back into the pipeline.
func DefaultIgnorePatterns() []string {
	return []string{".agentvc", ".git", "target", "node_modules"}
}

// Session is one tracked workspace, bounded by a start and an optional end.
// At most one session is active in a store at a time.
type Session struct {
	ID             uuid.UUID
	RootPath       string
	Started        time.Time
	Ended          *time.Time
	Active         bool
	IgnorePatterns []string
}

// NewSession creates an active session rooted at rootPath with the default
// ignore patterns.
func NewSession(rootPath string) *Session {
	return &Session{
		ID:             uuid.New(),
		RootPath:       rootPath,
		Started:        time.Now().UTC(),
		Active:         true,
		IgnorePatterns: DefaultIgnorePatterns(),
	}
}

// WithIgnorePatterns replaces the session's ignore patterns.
func (s *Session) WithIgnorePatterns(patterns []string) *Session {
	s.IgnorePatterns = patterns
	return s
}

// End marks the session inactive and stamps its end time.
func (s *Session) End() {
	now := time.Now().UTC()
	s.Active = false
	s.Ended = &now
}

// Change records one filesystem mutation. Changes are immutable once
// persisted; they are only ever read and referenced by commits.
type Change struct {
	ID                uuid.UUID
	Timestamp         time.Time
	Kind              ChangeKind
	Path              string
	OldPath           string // set only for renames
	ContentBefore     []byte
	ContentAfter      []byte
	ContentHashBefore string
	ContentHashAfter  string
	AgentID           string
	Metadata          map[string]string
	SessionID         uuid.UUID
}

// NewChange creates a change of the given kind for path, owned by sessionID.
func NewChange(kind ChangeKind, path string, sessionID uuid.UUID) *Change {
	return &Change{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Path:      path,
		Metadata:  make(map[string]string),
		SessionID: sessionID,
	}
}

// WithContentBefore attaches the prior file content and its hash.
func (c *Change) WithContentBefore(content []byte) *Change {
	c.ContentBefore = content
	c.ContentHashBefore = HashContent(content)
	return c
}

// WithContentAfter attaches the resulting file content and its hash.
func (c *Change) WithContentAfter(content []byte) *Change {
	c.ContentAfter = content
	c.ContentHashAfter = HashContent(content)
	return c
}

// WithAgentID tags the change with the identifier of the agent that made it.
func (c *Change) WithAgentID(agentID string) *Change {
	c.AgentID = agentID
	return c
}

// WithOldPath records the previous path for a rename.
func (c *Change) WithOldPath(oldPath string) *Change {
	c.OldPath = oldPath
	return c
}

// WithMetadata attaches a free-form key/value pair.
func (c *Change) WithMetadata(key, value string) *Change {
	c.Metadata[key] = value
	return c
}

// HashContent returns the hex-encoded SHA-256 digest of content. Hash fields
// are a verifiable cache of the content bytes, never independent truth.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Commit is an immutable named grouping of changes. Parent links form a
// linear history per session; there are no merge nodes.
type Commit struct {
	ID        uuid.UUID
	Parent    *uuid.UUID
	Timestamp time.Time
	Message   string
	AgentID   string
	Changes   []uuid.UUID
	SessionID uuid.UUID
	Metadata  map[string]string
}

// NewCommit creates a commit referencing the given change ids.
func NewCommit(message, agentID string, changes []uuid.UUID, sessionID uuid.UUID) *Commit {
	return &Commit{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Message:   message,
		AgentID:   agentID,
		Changes:   changes,
		SessionID: sessionID,
		Metadata:  make(map[string]string),
	}
}

// WithParent links the commit to its predecessor.
func (c *Commit) WithParent(parent uuid.UUID) *Commit {
	c.Parent = &parent
	return c
}

// WithMetadata attaches a free-form key/value pair.
func (c *Commit) WithMetadata(key, value string) *Commit {
	c.Metadata[key] = value
	return c
}

// CommitInfo is a read-only projection of a commit enriched with its change
// count and the affected paths. Derived on read, never persisted.
type CommitInfo struct {
	Commit        Commit
	ChangeCount   int
	FilesAffected []string
}
