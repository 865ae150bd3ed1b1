package store

import (
	"database/sql"

	"github.com/adalundhe/agentvc/core/database"
)

// Migrations defines the tracked schema. The version marker lives in
// PRAGMA user_version; version 1 is the full initial layout.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "initial sessions/changes/commits layout",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS sessions (
						id TEXT PRIMARY KEY,
						root_path TEXT NOT NULL,
						started TEXT NOT NULL,
						ended TEXT,
						active INTEGER NOT NULL,
						ignore_patterns TEXT NOT NULL
					);

					CREATE TABLE IF NOT EXISTS changes (
						id TEXT PRIMARY KEY,
						session_id TEXT NOT NULL,
						timestamp TEXT NOT NULL,
						change_kind TEXT NOT NULL,
						path TEXT NOT NULL,
						old_path TEXT,
						content_before BLOB,
						content_after BLOB,
						content_hash_before TEXT,
						content_hash_after TEXT,
						agent_id TEXT,
						metadata TEXT NOT NULL,
						FOREIGN KEY (session_id) REFERENCES sessions(id)
					);

					CREATE TABLE IF NOT EXISTS commits (
						id TEXT PRIMARY KEY,
						session_id TEXT NOT NULL,
						parent TEXT,
						timestamp TEXT NOT NULL,
						message TEXT NOT NULL,
						agent_id TEXT NOT NULL,
						metadata TEXT NOT NULL,
						FOREIGN KEY (session_id) REFERENCES sessions(id),
						FOREIGN KEY (parent) REFERENCES commits(id)
					);

					CREATE TABLE IF NOT EXISTS commit_changes (
						commit_id TEXT NOT NULL,
						change_id TEXT NOT NULL,
						PRIMARY KEY (commit_id, change_id),
						FOREIGN KEY (commit_id) REFERENCES commits(id),
						FOREIGN KEY (change_id) REFERENCES changes(id)
					);

					CREATE UNIQUE INDEX IF NOT EXISTS idx_commit_changes_change
						ON commit_changes(change_id);

					CREATE INDEX IF NOT EXISTS idx_changes_session ON changes(session_id);
					CREATE INDEX IF NOT EXISTS idx_changes_timestamp ON changes(timestamp);
					CREATE INDEX IF NOT EXISTS idx_commits_session ON commits(session_id);
					CREATE INDEX IF NOT EXISTS idx_commits_timestamp ON commits(timestamp);
					CREATE INDEX IF NOT EXISTS idx_commits_parent ON commits(parent);
				`)
				return err
			},
		},
	}
}
