// Package client is the convenience wrapper agents use to talk to a running
// agentvc server. Methods mirror the filesystem verbs an agent performs:
// announce a write, announce a delete, commit the accumulated changes.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one agentvc server on behalf of one agent.
type Client struct {
	baseURL string
	agentID string
	http    *http.Client
}

// New creates a client for the server at baseURL, attributing changes to
// agentID.
func New(baseURL, agentID string) *Client {
	return &Client{
		baseURL: baseURL,
		agentID: agentID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Change is the wire form of a recorded change as returned by the server.
type Change struct {
	ID            string            `json:"id"`
	Timestamp     string            `json:"timestamp"`
	ChangeType    string            `json:"change_type"`
	Path          string            `json:"path"`
	ContentBefore *string           `json:"content_before"`
	ContentAfter  *string           `json:"content_after"`
	AgentID       string            `json:"agent_id,omitempty"`
	Metadata      map[string]string `json:"metadata"`
	SessionID     string            `json:"session_id"`
}

// Commit is the wire form of a commit.
type Commit struct {
	ID        string   `json:"id"`
	Parent    *string  `json:"parent"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	AgentID   string   `json:"agent_id"`
	Changes   []string `json:"changes"`
	SessionID string   `json:"session_id"`
}

// CommitInfo is a commit enriched with its change count and affected paths.
type CommitInfo struct {
	Commit        Commit   `json:"commit"`
	ChangeCount   int      `json:"change_count"`
	FilesAffected []string `json:"files_affected"`
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

// FileCreated announces that the agent created path with content.
func (c *Client) FileCreated(path, content string) (*Change, error) {
	return c.createChange("create", path, nil, &content)
}

// FileModified announces that the agent rewrote path.
func (c *Client) FileModified(path, contentBefore, contentAfter string) (*Change, error) {
	return c.createChange("modify", path, &contentBefore, &contentAfter)
}

// FileWritten announces a write, classifying it as a create or a modify
// depending on whether previous content is known.
func (c *Client) FileWritten(path, content string, previous *string) (*Change, error) {
	if previous != nil {
		return c.FileModified(path, *previous, content)
	}
	return c.FileCreated(path, content)
}

// FileDeleted announces that the agent removed path. Passing the prior
// content makes the deletion reversible by rollback.
func (c *Client) FileDeleted(path string, contentBefore *string) (*Change, error) {
	return c.createChange("delete", path, contentBefore, nil)
}

func (c *Client) createChange(changeType, path string, before, after *string) (*Change, error) {
	req := createChangeRequest{
		ChangeType:    changeType,
		Path:          path,
		ContentBefore: before,
		ContentAfter:  after,
		AgentID:       c.agentID,
	}

	var change Change
	if err := c.post("/changes", req, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// UncommittedChanges returns the active session's changes not yet referenced
// by any commit, newest first.
func (c *Client) UncommittedChanges() ([]Change, error) {
	var changes []Change
	if err := c.get("/changes", &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// Commit groups every uncommitted change into a new commit with message.
func (c *Client) Commit(message string) (*Commit, error) {
	changes, err := c.UncommittedChanges()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
	}

	req := createCommitRequest{
		Message:   message,
		AgentID:   c.agentID,
		ChangeIDs: ids,
	}

	var commit Commit
	if err := c.post("/commits", req, &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

// Commits returns the active session's commit history, newest first.
func (c *Client) Commits() ([]CommitInfo, error) {
	var infos []CommitInfo
	if err := c.get("/commits", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Health reports whether the server is reachable and answering.
func (c *Client) Health() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
