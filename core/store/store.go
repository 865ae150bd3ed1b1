// Package store is the durable persistence layer for sessions, changes,
// commits and commit membership. It is the sole arbiter of identity and
// referential integrity; every write is committed to SQLite before the call
// returns. A single mutex serializes access to the shared connection between
// the event pipeline and any request-serving caller.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/agentvc/core/database"
	"github.com/adalundhe/agentvc/core/model"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so that stored
// timestamps order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const changeCacheSize = 1024

// Store persists the agentvc entity model.
type Store struct {
	mu   sync.Mutex
	pool *database.Pool

	// Changes are immutable once written, so resolved rows can be cached
	// indefinitely. Used when deriving commit summaries.
	changeCache *lru.Cache[uuid.UUID, *model.Change]
}

// New runs schema migrations against pool and returns a ready store.
func New(ctx context.Context, pool *database.Pool) (*Store, error) {
	migrator := database.NewMigrator(pool, Migrations())
	if err := migrator.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cache, err := lru.New[uuid.UUID, *model.Change](changeCacheSize)
	if err != nil {
		return nil, err
	}

	return &Store{pool: pool, changeCache: cache}, nil
}

// Open opens the database at path and returns a migrated store.
func Open(ctx context.Context, path string) (*Store, error) {
	pool, err := database.Open(path, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	st, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Close()
}

// CreateSession inserts a new session. Creating an active session while
// another is still active fails with SessionAlreadyActiveError, which keeps
// at most one active row in the table.
func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Active {
		existing, err := s.activeSessionLocked(ctx)
		if err == nil {
			return &SessionAlreadyActiveError{Root: existing.RootPath}
		}
		if err != ErrNoActiveSession {
			return err
		}
	}

	patterns, err := json.Marshal(session.IgnorePatterns)
	if err != nil {
		return fmt.Errorf("encode ignore patterns: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, root_path, started, ended, active, ignore_patterns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID.String(),
		session.RootPath,
		session.Started.Format(timeLayout),
		formatOptionalTime(session.Ended),
		boolToInt(session.Active),
		string(patterns),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %s: %w", session.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.pool.QueryRow(ctx,
		`SELECT id, root_path, started, ended, active, ignore_patterns
		 FROM sessions WHERE id = ?`, id.String())

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "session", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetActiveSession returns the single active session, or ErrNoActiveSession.
func (s *Store) GetActiveSession(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessionLocked(ctx)
}

func (s *Store) activeSessionLocked(ctx context.Context) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, root_path, started, ended, active, ignore_patterns
		 FROM sessions WHERE active = 1 LIMIT 1`)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

// EndSession persists the session's ended timestamp, active flag and ignore
// patterns. Sessions are never deleted.
func (s *Store) EndSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	patterns, err := json.Marshal(session.IgnorePatterns)
	if err != nil {
		return fmt.Errorf("encode ignore patterns: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET ended = ?, active = ?, ignore_patterns = ? WHERE id = ?`,
		formatOptionalTime(session.Ended),
		boolToInt(session.Active),
		string(patterns),
		session.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// CreateChange inserts an immutable change record. Content blobs are stored
// alongside the metadata row; hashes were computed when the content was
// attached.
func (s *Store) CreateChange(ctx context.Context, change *model.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := json.Marshal(change.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO changes (id, session_id, timestamp, change_kind, path, old_path,
		                      content_before, content_after, content_hash_before,
		                      content_hash_after, agent_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ID.String(),
		change.SessionID.String(),
		change.Timestamp.Format(timeLayout),
		change.Kind.String(),
		change.Path,
		nullString(change.OldPath),
		nullBytes(change.ContentBefore),
		nullBytes(change.ContentAfter),
		nullString(change.ContentHashBefore),
		nullString(change.ContentHashAfter),
		nullString(change.AgentID),
		string(metadata),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("change %s: %w", change.ID, ErrDuplicateID)
		}
		return fmt.Errorf("create change: %w", err)
	}

	return nil
}

// GetChange returns the change with the given id.
func (s *Store) GetChange(ctx context.Context, id uuid.UUID) (*model.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeLocked(ctx, id)
}

func (s *Store) changeLocked(ctx context.Context, id uuid.UUID) (*model.Change, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, timestamp, change_kind, path, old_path,
		        content_before, content_after, content_hash_before,
		        content_hash_after, agent_id, metadata
		 FROM changes WHERE id = ?`, id.String())

	change, err := scanChange(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "change", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get change: %w", err)
	}
	return change, nil
}

// UncommittedChanges returns the session's changes not yet referenced by any
// commit, newest first.
func (s *Store) UncommittedChanges(ctx context.Context, sessionID uuid.UUID) ([]*model.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, timestamp, change_kind, path, old_path,
		        content_before, content_after, content_hash_before,
		        content_hash_after, agent_id, metadata
		 FROM changes
		 WHERE session_id = ? AND id NOT IN (SELECT change_id FROM commit_changes)
		 ORDER BY timestamp DESC`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("uncommitted changes: %w", err)
	}
	defer rows.Close()

	var changes []*model.Change
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("uncommitted changes: %w", err)
		}
		changes = append(changes, change)
	}

	return changes, rows.Err()
}

// CreateCommit inserts the commit row and one membership row per referenced
// change as a single transaction. Every referenced change must exist, belong
// to the commit's session, and be free of any prior commit membership.
func (s *Store) CreateCommit(ctx context.Context, commit *model.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := json.Marshal(commit.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	err = s.pool.Transaction(ctx, func(tx *sql.Tx) error {
		for _, changeID := range commit.Changes {
			if err := checkChangeCommittable(tx, changeID, commit.SessionID); err != nil {
				return err
			}
		}

		_, err := tx.Exec(
			`INSERT INTO commits (id, session_id, parent, timestamp, message, agent_id, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			commit.ID.String(),
			commit.SessionID.String(),
			formatOptionalUUID(commit.Parent),
			commit.Timestamp.Format(timeLayout),
			commit.Message,
			commit.AgentID,
			string(metadata),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("commit %s: %w", commit.ID, ErrDuplicateID)
			}
			return err
		}

		for _, changeID := range commit.Changes {
			_, err := tx.Exec(
				`INSERT INTO commit_changes (commit_id, change_id) VALUES (?, ?)`,
				commit.ID.String(), changeID.String())
			if err != nil {
				if isUniqueViolation(err) {
					return &ChangeAlreadyCommittedError{ChangeID: changeID.String()}
				}
				return err
			}
		}

		return nil
	})
	if err != nil {
		var already *ChangeAlreadyCommittedError
		var nf *NotFoundError
		if errors.As(err, &already) || errors.As(err, &nf) {
			return err
		}
		return fmt.Errorf("create commit: %w", err)
	}

	return nil
}

// checkChangeCommittable verifies the change exists, belongs to sessionID and
// is not yet owned by another commit.
func checkChangeCommittable(tx *sql.Tx, changeID, sessionID uuid.UUID) error {
	var owner string
	err := tx.QueryRow(`SELECT session_id FROM changes WHERE id = ?`, changeID.String()).Scan(&owner)
	if err == sql.ErrNoRows {
		return &NotFoundError{Entity: "change", ID: changeID.String()}
	}
	if err != nil {
		return err
	}
	if owner != sessionID.String() {
		return fmt.Errorf("change %s belongs to session %s, not %s", changeID, owner, sessionID)
	}

	var existing string
	err = tx.QueryRow(`SELECT commit_id FROM commit_changes WHERE change_id = ?`, changeID.String()).Scan(&existing)
	if err == nil {
		return &ChangeAlreadyCommittedError{ChangeID: changeID.String()}
	}
	if err != sql.ErrNoRows {
		return err
	}
	return nil
}

// GetCommit returns the commit with the given id, with its change list
// reconstructed from the membership rows.
func (s *Store) GetCommit(ctx context.Context, id uuid.UUID) (*model.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, parent, timestamp, message, agent_id, metadata
		 FROM commits WHERE id = ?`, id.String())

	commit, err := scanCommit(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "commit", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}

	if err := s.loadCommitChanges(ctx, commit); err != nil {
		return nil, err
	}
	return commit, nil
}

// CommitsForSession returns the session's commits newest first, each enriched
// with its change count and affected paths. Change ids that no longer resolve
// are dropped from the derived lists, not surfaced as errors.
func (s *Store) CommitsForSession(ctx context.Context, sessionID uuid.UUID) ([]*model.CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, parent, timestamp, message, agent_id, metadata
		 FROM commits WHERE session_id = ? ORDER BY timestamp DESC`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("commits for session: %w", err)
	}
	defer rows.Close()

	var commits []*model.Commit
	for rows.Next() {
		commit, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("commits for session: %w", err)
		}
		commits = append(commits, commit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	infos := make([]*model.CommitInfo, 0, len(commits))
	for _, commit := range commits {
		if err := s.loadCommitChanges(ctx, commit); err != nil {
			return nil, err
		}
		infos = append(infos, s.commitInfoLocked(ctx, commit))
	}

	return infos, nil
}

func (s *Store) loadCommitChanges(ctx context.Context, commit *model.Commit) error {
	rows, err := s.pool.Query(ctx,
		`SELECT change_id FROM commit_changes WHERE commit_id = ?`, commit.ID.String())
	if err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		commit.Changes = append(commit.Changes, id)
	}
	return rows.Err()
}

// commitInfoLocked derives the read-only projection for one commit. Change
// resolution goes through the immutable-row LRU cache.
func (s *Store) commitInfoLocked(ctx context.Context, commit *model.Commit) *model.CommitInfo {
	info := &model.CommitInfo{Commit: *commit}

	seen := make(map[string]struct{})
	for _, changeID := range commit.Changes {
		change, ok := s.changeCache.Get(changeID)
		if !ok {
			var err error
			change, err = s.changeLocked(ctx, changeID)
			if err != nil {
				continue
			}
			s.changeCache.Add(changeID, change)
		}

		info.ChangeCount++
		if _, dup := seen[change.Path]; !dup {
			seen[change.Path] = struct{}{}
			info.FilesAffected = append(info.FilesAffected, change.Path)
		}
	}

	return info
}

// ---- row scanning -----------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		id, rootPath, started, patterns string
		ended                           sql.NullString
		active                          int
	)
	if err := row.Scan(&id, &rootPath, &started, &ended, &active, &patterns); err != nil {
		return nil, err
	}

	session := &model.Session{
		RootPath: rootPath,
		Active:   active != 0,
	}

	var err error
	if session.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	if session.Started, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("session started: %w", err)
	}
	if ended.Valid {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return nil, fmt.Errorf("session ended: %w", err)
		}
		session.Ended = &t
	}
	if err := json.Unmarshal([]byte(patterns), &session.IgnorePatterns); err != nil {
		session.IgnorePatterns = nil
	}

	return session, nil
}

func scanChange(row rowScanner) (*model.Change, error) {
	var (
		id, sessionID, timestamp, kind, path  string
		oldPath, hashBefore, hashAfter, agent sql.NullString
		contentBefore, contentAfter           []byte
		metadata                              string
	)
	if err := row.Scan(&id, &sessionID, &timestamp, &kind, &path, &oldPath,
		&contentBefore, &contentAfter, &hashBefore, &hashAfter, &agent, &metadata); err != nil {
		return nil, err
	}

	change := &model.Change{
		Path:              path,
		OldPath:           oldPath.String,
		ContentBefore:     contentBefore,
		ContentAfter:      contentAfter,
		ContentHashBefore: hashBefore.String,
		ContentHashAfter:  hashAfter.String,
		AgentID:           agent.String,
	}

	var err error
	if change.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("change id: %w", err)
	}
	if change.SessionID, err = uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("change session id: %w", err)
	}
	if change.Timestamp, err = time.Parse(timeLayout, timestamp); err != nil {
		return nil, fmt.Errorf("change timestamp: %w", err)
	}

	parsed, ok := model.ParseChangeKind(kind)
	if !ok {
		return nil, fmt.Errorf("unknown change kind: %q", kind)
	}
	change.Kind = parsed

	if err := json.Unmarshal([]byte(metadata), &change.Metadata); err != nil {
		change.Metadata = make(map[string]string)
	}

	return change, nil
}

func scanCommit(row rowScanner) (*model.Commit, error) {
	var (
		id, sessionID, timestamp, message, agent string
		parent                                   sql.NullString
		metadata                                 string
	)
	if err := row.Scan(&id, &sessionID, &parent, &timestamp, &message, &agent, &metadata); err != nil {
		return nil, err
	}

	commit := &model.Commit{
		Message: message,
		AgentID: agent,
	}

	var err error
	if commit.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("commit id: %w", err)
	}
	if commit.SessionID, err = uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("commit session id: %w", err)
	}
	if commit.Timestamp, err = time.Parse(timeLayout, timestamp); err != nil {
		return nil, fmt.Errorf("commit timestamp: %w", err)
	}
	if parent.Valid {
		p, err := uuid.Parse(parent.String)
		if err != nil {
			return nil, fmt.Errorf("commit parent: %w", err)
		}
		commit.Parent = &p
	}
	if err := json.Unmarshal([]byte(metadata), &commit.Metadata); err != nil {
		commit.Metadata = make(map[string]string)
	}

	return commit, nil
}

// ---- value helpers ----------------------------------------------------------

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func formatOptionalUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
