package store

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// AnnotationStatus is the lifecycle state of an Annotation, per the
// transition lattice in spec.md §3.
type AnnotationStatus string

const (
	StatusPending      AnnotationStatus = "pending"
	StatusAcknowledged AnnotationStatus = "acknowledged"
	StatusResolved     AnnotationStatus = "resolved"
	StatusDismissed    AnnotationStatus = "dismissed"
)

// legalTransitions enumerates every allowed status edge. Any pair not in
// this set fails with apperr.Validation.
var legalTransitions = map[AnnotationStatus]map[AnnotationStatus]bool{
	StatusPending: {
		StatusAcknowledged: true,
		StatusDismissed:    true,
	},
	StatusAcknowledged: {
		StatusResolved:  true,
		StatusDismissed: true,
	},
	StatusResolved: {
		StatusPending: true,
	},
	StatusDismissed: {
		StatusPending: true,
	},
}

// CanTransition reports whether from -> to is a legal edge in the
// transition lattice. A status transitioning to itself is always legal
// (PATCH with the current value is a no-op on the status field).
func CanTransition(from, to AnnotationStatus) bool {
	if from == to {
		return true
	}
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ResolverKind identifies who resolved or dismissed an annotation.
type ResolverKind string

const (
	ResolverHuman ResolverKind = "human"
	ResolverAgent ResolverKind = "agent"
)

// Intent classifies the kind of feedback an annotation carries.
type Intent string

const (
	IntentFix     Intent = "fix"
	IntentChange  Intent = "change"
	IntentQuestion Intent = "question"
	IntentApprove Intent = "approve"
)

// Severity classifies how urgent an annotation is.
type Severity string

const (
	SeverityBlocking   Severity = "blocking"
	SeverityImportant  Severity = "important"
	SeveritySuggestion Severity = "suggestion"
)

// ThreadRole identifies who authored a ThreadMessage.
type ThreadRole string

const (
	RoleHuman ThreadRole = "human"
	RoleAgent ThreadRole = "agent"
)

// Session is a page-annotation context.
type Session struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	ProjectID string        `json:"projectId,omitempty"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// BoundingBox is the optional screen rectangle an annotation is attached
// to.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Annotation is a single piece of feedback attached to one element.
type Annotation struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	Comment     string            `json:"comment"`
	Element     string            `json:"element"`
	ElementPath string            `json:"elementPath"`
	URL         string            `json:"url,omitempty"`
	BoundingBox *BoundingBox      `json:"boundingBox,omitempty"`
	Intent      Intent            `json:"intent,omitempty"`
	Severity    Severity          `json:"severity,omitempty"`
	Status      AnnotationStatus  `json:"status"`
	ResolvedBy  ResolverKind      `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time        `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Context     map[string]string `json:"context,omitempty"`
	Thread      []ThreadMessage   `json:"thread,omitempty"`
}

// ThreadMessage is a reply on an annotation. Append-only.
type ThreadMessage struct {
	ID           string     `json:"id"`
	AnnotationID string     `json:"annotationId"`
	Role         ThreadRole `json:"role"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SessionDetail embeds a session's annotations in insertion order.
type SessionDetail struct {
	Session
	Annotations []Annotation `json:"annotations"`
}

// EventType names the kind of mutation an Event records.
type EventType string

const (
	EventAnnotationCreated EventType = "annotation.created"
	EventAnnotationUpdated EventType = "annotation.updated"
	EventAnnotationDeleted EventType = "annotation.deleted"
	EventSessionCreated    EventType = "session.created"
	EventSessionUpdated    EventType = "session.updated"
	EventSessionClosed     EventType = "session.closed"
	EventThreadMessage     EventType = "thread.message"
)

// Event is a durable record of a single mutation.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Sequence  int64     `json:"sequence"`
	Payload   any       `json:"payload"`
}

// AnnotationPatch is a partial update to an Annotation: fields present
// (non-nil) overwrite, fields absent are preserved.
type AnnotationPatch struct {
	Comment     *string
	Element     *string
	ElementPath *string
	URL         *string
	BoundingBox *BoundingBox
	Intent      *Intent
	Severity    *Severity
	Status      *AnnotationStatus
	ResolvedBy  *ResolverKind
	Context     map[string]string
}
