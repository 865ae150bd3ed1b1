// Package server exposes the change-tracking engine over HTTP. It is a thin
// adapter: every endpoint maps one-to-one onto a store or rollback operation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/adalundhe/agentvc/core/model"
	"github.com/adalundhe/agentvc/core/rollback"
	"github.com/adalundhe/agentvc/core/store"
)

// Server serves the engine's HTTP API.
type Server struct {
	store    *store.Store
	rollback *rollback.Engine
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New builds a server around st.
func New(st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:    st,
		rollback: rollback.NewEngine(st, logger),
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /session", s.handleGetSession)
	s.mux.HandleFunc("GET /changes", s.handleGetChanges)
	s.mux.HandleFunc("POST /changes", s.handleCreateChange)
	s.mux.HandleFunc("GET /commits", s.handleGetCommits)
	s.mux.HandleFunc("POST /commits", s.handleCreateCommit)
	s.mux.HandleFunc("GET /commits/{id}", s.handleGetCommit)
	s.mux.HandleFunc("POST /rollback", s.handleRollback)

	return s
}

// Handler returns the routing handler, usable with httptest in tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetActiveSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeSession(session))
}

func (s *Server) handleGetChanges(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetActiveSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	changes, err := s.store.UncommittedChanges(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]changeJSON, 0, len(changes))
	for _, change := range changes {
		out = append(out, encodeChange(change))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateChange(w http.ResponseWriter, r *http.Request) {
	var req createChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	kind, ok := model.ParseChangeKind(req.ChangeType)
	if !ok {
		http.Error(w, "invalid change type", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	session, err := s.store.GetActiveSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	change := model.NewChange(kind, req.Path, session.ID)
	if req.ContentBefore != nil {
		change.WithContentBefore([]byte(*req.ContentBefore))
	}
	if req.ContentAfter != nil {
		change.WithContentAfter([]byte(*req.ContentAfter))
	}
	if req.AgentID != "" {
		change.WithAgentID(req.AgentID)
	}

	if err := s.store.CreateChange(r.Context(), change); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeChange(change))
}

func (s *Server) handleGetCommits(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetActiveSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	infos, err := s.store.CommitsForSession(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]commitInfoJSON, 0, len(infos))
	for _, info := range infos {
		out = append(out, encodeCommitInfo(info))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCommit(w http.ResponseWriter, r *http.Request) {
	var req createCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.store.GetActiveSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	commit := model.NewCommit(req.Message, req.AgentID, parseUUIDs(req.ChangeIDs), session.ID)

	// Commits form a linear chain per session.
	if infos, err := s.store.CommitsForSession(r.Context(), session.ID); err == nil && len(infos) > 0 {
		commit.WithParent(infos[0].Commit.ID)
	}

	if err := s.store.CreateCommit(r.Context(), commit); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeCommit(commit))
}

func (s *Server) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid commit id", http.StatusBadRequest)
		return
	}

	commit, err := s.store.GetCommit(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCommit(commit))
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	commitID, err := uuid.Parse(req.CommitID)
	if err != nil {
		http.Error(w, "invalid commit id", http.StatusBadRequest)
		return
	}

	var report *rollback.Report
	if req.Execute {
		report, err = s.rollback.Execute(r.Context(), commitID)
	} else {
		report, err = s.rollback.Plan(r.Context(), commitID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := rollbackReportJSON{
		CommitID:  report.CommitID.String(),
		Executed:  report.Executed,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Steps:     make([]rollbackStepJSON, 0, len(report.Steps)),
	}
	for _, step := range report.Steps {
		stepOut := rollbackStepJSON{
			ChangeID: step.ChangeID.String(),
			Path:     step.Path,
			Action:   step.Action.String(),
		}
		if step.Err != nil {
			stepOut.Error = step.Err.Error()
		}
		out.Steps = append(out.Steps, stepOut)
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var already *store.ChangeAlreadyCommittedError
	switch {
	case store.IsNotFound(err), errors.Is(err, store.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.As(err, &already):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
