package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	URL       string `json:"url"`
	ProjectID string `json:"projectId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.store.CreateSession(r.Context(), req.URL, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishSessionEvent(r.Context(), store.EventSessionCreated, sess)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := s.store.GetSessionWithAnnotations(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.store.CloseSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishSessionEvent(r.Context(), store.EventSessionClosed, sess)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.store.DeleteSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishSessionEvent(r.Context(), store.EventSessionUpdated, sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publishSessionEvent(ctx context.Context, typ store.EventType, sess store.Session) {
	_, err := s.bus.Publish(ctx, store.Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		SessionID: sess.ID,
		Payload:   sess,
	})
	if err != nil {
		logger.Error("publish session event failed", "type", typ, "session", sess.ID, "error", err)
	}
}
