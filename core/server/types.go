package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/agentvc/core/model"
)

// Wire representations. Content travels as text; the engine stores raw bytes
// internally.

type sessionJSON struct {
	ID             string   `json:"id"`
	RootPath       string   `json:"root_path"`
	Started        string   `json:"started"`
	Ended          *string  `json:"ended"`
	Active         bool     `json:"active"`
	IgnorePatterns []string `json:"ignore_patterns"`
}

type changeJSON struct {
	ID                string            `json:"id"`
	Timestamp         string            `json:"timestamp"`
	ChangeType        string            `json:"change_type"`
	Path              string            `json:"path"`
	OldPath           string            `json:"old_path,omitempty"`
	ContentBefore     *string           `json:"content_before"`
	ContentAfter      *string           `json:"content_after"`
	ContentHashBefore string            `json:"content_hash_before,omitempty"`
	ContentHashAfter  string            `json:"content_hash_after,omitempty"`
	AgentID           string            `json:"agent_id,omitempty"`
	Metadata          map[string]string `json:"metadata"`
	SessionID         string            `json:"session_id"`
}

type commitJSON struct {
	ID        string            `json:"id"`
	Parent    *string           `json:"parent"`
	Timestamp string            `json:"timestamp"`
	Message   string            `json:"message"`
	AgentID   string            `json:"agent_id"`
	Changes   []string          `json:"changes"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata"`
}

type commitInfoJSON struct {
	Commit        commitJSON `json:"commit"`
	ChangeCount   int        `json:"change_count"`
	FilesAffected []string   `json:"files_affected"`
}

type createChangeRequest struct {
	ChangeType    string  `json:"change_type"`
	Path          string  `json:"path"`
	ContentBefore *string `json:"content_before"`
	ContentAfter  *string `json:"content_after"`
	AgentID       string  `json:"agent_id,omitempty"`
}

type createCommitRequest struct {
	Message   string   `json:"message"`
	AgentID   string   `json:"agent_id"`
	ChangeIDs []string `json:"change_ids"`
}

type rollbackRequest struct {
	CommitID string `json:"commit_id"`
	Execute  bool   `json:"execute"`
}

type rollbackStepJSON struct {
	ChangeID string `json:"change_id"`
	Path     string `json:"path"`
	Action   string `json:"action"`
	Error    string `json:"error,omitempty"`
}

type rollbackReportJSON struct {
	CommitID  string             `json:"commit_id"`
	Executed  bool               `json:"executed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Steps     []rollbackStepJSON `json:"steps"`
}

func encodeSession(s *model.Session) sessionJSON {
	out := sessionJSON{
		ID:             s.ID.String(),
		RootPath:       s.RootPath,
		Started:        s.Started.Format(time.RFC3339Nano),
		Active:         s.Active,
		IgnorePatterns: s.IgnorePatterns,
	}
	if s.Ended != nil {
		ended := s.Ended.Format(time.RFC3339Nano)
		out.Ended = &ended
	}
	return out
}

func encodeChange(c *model.Change) changeJSON {
	out := changeJSON{
		ID:                c.ID.String(),
		Timestamp:         c.Timestamp.Format(time.RFC3339Nano),
		ChangeType:        c.Kind.String(),
		Path:              c.Path,
		OldPath:           c.OldPath,
		ContentHashBefore: c.ContentHashBefore,
		ContentHashAfter:  c.ContentHashAfter,
		AgentID:           c.AgentID,
		Metadata:          c.Metadata,
		SessionID:         c.SessionID.String(),
	}
	if c.ContentBefore != nil {
		before := string(c.ContentBefore)
		out.ContentBefore = &before
	}
	if c.ContentAfter != nil {
		after := string(c.ContentAfter)
		out.ContentAfter = &after
	}
	return out
}

func encodeCommit(c *model.Commit) commitJSON {
	out := commitJSON{
		ID:        c.ID.String(),
		Timestamp: c.Timestamp.Format(time.RFC3339Nano),
		Message:   c.Message,
		AgentID:   c.AgentID,
		Changes:   make([]string, 0, len(c.Changes)),
		SessionID: c.SessionID.String(),
		Metadata:  c.Metadata,
	}
	if c.Parent != nil {
		parent := c.Parent.String()
		out.Parent = &parent
	}
	for _, id := range c.Changes {
		out.Changes = append(out.Changes, id.String())
	}
	return out
}

func encodeCommitInfo(info *model.CommitInfo) commitInfoJSON {
	files := info.FilesAffected
	if files == nil {
		files = []string{}
	}
	return commitInfoJSON{
		Commit:        encodeCommit(&info.Commit),
		ChangeCount:   info.ChangeCount,
		FilesAffected: files,
	}
}

func parseUUIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
