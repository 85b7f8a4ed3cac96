// Package store owns durable, consistent custody of sessions,
// annotations, thread messages, and the event log. It is the only
// component permitted to mutate these entities. Mutations do not append
// events themselves: the caller appends the matching event with a separate
// AppendEvent call, so a reader can observe a mutation before its event is
// in the log.
package store

import "context"

// AnnotationCreate carries the fields a client may set when creating an
// annotation. Context holds the string map the client sends under
// "context", kept verbatim; other unrecognized request fields are not kept.
type AnnotationCreate struct {
	Comment     string
	Element     string
	ElementPath string
	URL         string
	BoundingBox *BoundingBox
	Intent      Intent
	Severity    Severity
	Context     map[string]string
}

// Store is the narrow interface both the durable (SQLite) and volatile
// (in-memory) backings implement identically.
type Store interface {
	CreateSession(ctx context.Context, url, projectID string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	GetSessionWithAnnotations(ctx context.Context, id string) (SessionDetail, error)
	CloseSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) (Session, error)

	AddAnnotation(ctx context.Context, sessionID string, in AnnotationCreate) (Annotation, error)
	GetAnnotation(ctx context.Context, id string) (Annotation, error)
	UpdateAnnotation(ctx context.Context, id string, patch AnnotationPatch) (Annotation, error)
	DeleteAnnotation(ctx context.Context, id string) (Annotation, error)
	GetPendingAnnotations(ctx context.Context, sessionID string) ([]Annotation, error)
	GetAllPendingAnnotations(ctx context.Context) ([]Annotation, error)

	AddThreadMessage(ctx context.Context, annotationID string, role ThreadRole, content string) (Annotation, error)

	AppendEvent(ctx context.Context, ev Event) (Event, error)
	GetEventsSince(ctx context.Context, sessionID string, lastSequence int64, limit int) ([]Event, error)
	GetEventsSinceGlobal(ctx context.Context, lastSequence int64, limit int) ([]Event, error)
	DeleteEventsOlderThan(ctx context.Context, cutoffUnixNano int64) (int64, error)

	Close() error
}
