package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/store"
)

type createAnnotationRequest struct {
	Comment     string             `json:"comment"`
	Element     string             `json:"element"`
	ElementPath string             `json:"elementPath"`
	URL         string             `json:"url"`
	BoundingBox *store.BoundingBox `json:"boundingBox"`
	Intent      store.Intent       `json:"intent"`
	Severity    store.Severity     `json:"severity"`
	Context     map[string]string  `json:"context"`
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req createAnnotationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Comment == "" {
		writeError(w, invalidRequest("comment is required"))
		return
	}
	if req.Element == "" {
		writeError(w, invalidRequest("element is required"))
		return
	}
	if req.ElementPath == "" {
		writeError(w, invalidRequest("elementPath is required"))
		return
	}

	ann, err := s.store.AddAnnotation(r.Context(), sessionID, store.AnnotationCreate{
		Comment:     req.Comment,
		Element:     req.Element,
		ElementPath: req.ElementPath,
		URL:         req.URL,
		BoundingBox: req.BoundingBox,
		Intent:      req.Intent,
		Severity:    req.Severity,
		Context:     req.Context,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishAnnotationEvent(r.Context(), store.EventAnnotationCreated, ann)
	writeJSON(w, http.StatusCreated, ann)
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	detail, err := s.store.GetSessionWithAnnotations(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": detail.Annotations})
}

func (s *Server) handlePendingAnnotations(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	anns, err := s.store.GetPendingAnnotations(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(anns), "annotations": anns})
}

func (s *Server) handleAllPendingAnnotations(w http.ResponseWriter, r *http.Request) {
	anns, err := s.store.GetAllPendingAnnotations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(anns), "annotations": anns})
}

func (s *Server) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ann, err := s.store.GetAnnotation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

type updateAnnotationRequest struct {
	Comment     *string                 `json:"comment"`
	Element     *string                 `json:"element"`
	ElementPath *string                 `json:"elementPath"`
	URL         *string                 `json:"url"`
	BoundingBox *store.BoundingBox      `json:"boundingBox"`
	Intent      *store.Intent           `json:"intent"`
	Severity    *store.Severity         `json:"severity"`
	Status      *store.AnnotationStatus `json:"status"`
	ResolvedBy  *store.ResolverKind     `json:"resolvedBy"`
	Context     map[string]string       `json:"context"`
}

func (s *Server) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateAnnotationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ann, err := s.store.UpdateAnnotation(r.Context(), id, store.AnnotationPatch{
		Comment:     req.Comment,
		Element:     req.Element,
		ElementPath: req.ElementPath,
		URL:         req.URL,
		BoundingBox: req.BoundingBox,
		Intent:      req.Intent,
		Severity:    req.Severity,
		Status:      req.Status,
		ResolvedBy:  req.ResolvedBy,
		Context:     req.Context,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishAnnotationEvent(r.Context(), store.EventAnnotationUpdated, ann)
	writeJSON(w, http.StatusOK, ann)
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ann, err := s.store.DeleteAnnotation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishAnnotationEvent(r.Context(), store.EventAnnotationDeleted, ann)
	w.WriteHeader(http.StatusNoContent)
}

type addThreadMessageRequest struct {
	Role    store.ThreadRole `json:"role"`
	Content string           `json:"content"`
}

func (s *Server) handleAddThreadMessage(w http.ResponseWriter, r *http.Request) {
	annotationID := mux.Vars(r)["id"]
	var req addThreadMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Content == "" {
		writeError(w, invalidRequest("content is required"))
		return
	}
	if req.Role != store.RoleHuman && req.Role != store.RoleAgent {
		writeError(w, invalidRequest("role must be human or agent"))
		return
	}

	ann, err := s.store.AddThreadMessage(r.Context(), annotationID, req.Role, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishAnnotationEvent(r.Context(), store.EventThreadMessage, ann)
	writeJSON(w, http.StatusCreated, ann)
}

func (s *Server) publishAnnotationEvent(ctx context.Context, typ store.EventType, ann store.Annotation) {
	_, err := s.bus.Publish(ctx, store.Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		SessionID: ann.SessionID,
		Payload:   ann,
	})
	if err != nil {
		logger.Error("publish annotation event failed", "type", typ, "annotation", ann.ID, "error", err)
	}
}
