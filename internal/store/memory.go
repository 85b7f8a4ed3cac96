package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentation/broker/internal/apperr"
)

// memoryStore emulates the durable backing's semantics with in-memory
// maps and an append-only event slice, protected by a single mutex that
// serializes every call. A mutation and its event are written by separate
// calls, so the pair is not atomic to readers.
type memoryStore struct {
	mu sync.Mutex

	sessions    map[string]Session
	annotations map[string]Annotation
	threads     map[string][]ThreadMessage // annotationID -> messages
	events      []Event
}

// NewMemory constructs a volatile Store backed by process memory only.
func NewMemory() Store {
	return &memoryStore{
		sessions:    map[string]Session{},
		annotations: map[string]Annotation{},
		threads:     map[string][]ThreadMessage{},
	}
}

func (m *memoryStore) CreateSession(ctx context.Context, url, projectID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{
		ID:        uuid.NewString(),
		URL:       url,
		ProjectID: projectID,
		Status:    SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memoryStore) ListSessions(ctx context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (m *memoryStore) GetSession(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSessionLocked(id)
}

func (m *memoryStore) getSessionLocked(id string) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, apperr.NotFound("session", id)
	}
	return s, nil
}

func (m *memoryStore) GetSessionWithAnnotations(ctx context.Context, id string) (SessionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.getSessionLocked(id)
	if err != nil {
		return SessionDetail{}, err
	}
	anns := m.annotationsForSessionLocked(id)
	return SessionDetail{Session: s, Annotations: anns}, nil
}

func (m *memoryStore) annotationsForSessionLocked(sessionID string) []Annotation {
	anns := make([]Annotation, 0)
	for _, a := range m.annotations {
		if a.SessionID == sessionID {
			anns = append(anns, a)
		}
	}
	sortAnnotations(anns)
	return anns
}

func (m *memoryStore) CloseSession(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.getSessionLocked(id)
	if err != nil {
		return Session{}, err
	}
	s.Status = SessionClosed
	m.sessions[id] = s
	return s, nil
}

func (m *memoryStore) DeleteSession(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.getSessionLocked(id)
	if err != nil {
		return Session{}, err
	}
	for aid, a := range m.annotations {
		if a.SessionID == id {
			delete(m.annotations, aid)
			delete(m.threads, aid)
		}
	}
	delete(m.sessions, id)
	return s, nil
}

func (m *memoryStore) AddAnnotation(ctx context.Context, sessionID string, in AnnotationCreate) (Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getSessionLocked(sessionID); err != nil {
		return Annotation{}, err
	}

	now := time.Now().UTC()
	a := Annotation{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Comment:     in.Comment,
		Element:     in.Element,
		ElementPath: in.ElementPath,
		URL:         in.URL,
		BoundingBox: in.BoundingBox,
		Intent:      in.Intent,
		Severity:    in.Severity,
		Status:      StatusPending,
		Context:     in.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.annotations[a.ID] = a
	return a, nil
}

func (m *memoryStore) getAnnotationLocked(id string) (Annotation, error) {
	a, ok := m.annotations[id]
	if !ok {
		return Annotation{}, apperr.NotFound("annotation", id)
	}
	a.Thread = append([]ThreadMessage(nil), m.threads[id]...)
	sortThread(a.Thread)
	return a, nil
}

func (m *memoryStore) GetAnnotation(ctx context.Context, id string) (Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAnnotationLocked(id)
}

func (m *memoryStore) UpdateAnnotation(ctx context.Context, id string, patch AnnotationPatch) (Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.annotations[id]
	if !ok {
		return Annotation{}, apperr.NotFound("annotation", id)
	}
	if err := applyPatch(&a, patch); err != nil {
		return Annotation{}, err
	}
	m.annotations[id] = a
	return m.getAnnotationLocked(id)
}

func (m *memoryStore) DeleteAnnotation(ctx context.Context, id string) (Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getAnnotationLocked(id)
	if err != nil {
		return Annotation{}, err
	}
	delete(m.annotations, id)
	delete(m.threads, id)
	return a, nil
}

func (m *memoryStore) GetPendingAnnotations(ctx context.Context, sessionID string) ([]Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Annotation, 0)
	for _, a := range m.annotationsForSessionLocked(sessionID) {
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) GetAllPendingAnnotations(ctx context.Context) ([]Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Annotation, 0)
	for _, a := range m.annotations {
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	sortAnnotations(out)
	return out, nil
}

func (m *memoryStore) AddThreadMessage(ctx context.Context, annotationID string, role ThreadRole, content string) (Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.annotations[annotationID]
	if !ok {
		return Annotation{}, apperr.NotFound("annotation", annotationID)
	}
	msg := ThreadMessage{
		ID:           uuid.NewString(),
		AnnotationID: annotationID,
		Role:         role,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}
	m.threads[annotationID] = append(m.threads[annotationID], msg)
	a.UpdatedAt = msg.CreatedAt
	m.annotations[annotationID] = a
	return m.getAnnotationLocked(annotationID)
}

func (m *memoryStore) AppendEvent(ctx context.Context, ev Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memoryStore) GetEventsSince(ctx context.Context, sessionID string, lastSequence int64, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0)
	for _, ev := range m.events {
		if ev.SessionID != sessionID || ev.Sequence <= lastSequence {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) GetEventsSinceGlobal(ctx context.Context, lastSequence int64, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0)
	for _, ev := range m.events {
		if ev.Sequence <= lastSequence {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteEventsOlderThan(ctx context.Context, cutoffUnixNano int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var removed int64
	for _, ev := range m.events {
		if ev.Timestamp.UnixNano() < cutoffUnixNano {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return removed, nil
}

func (m *memoryStore) Close() error { return nil }
