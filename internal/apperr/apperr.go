// Package apperr defines the broker's error taxonomy so the store and the
// HTTP surface share one classification, which the HTTP surface translates
// into status codes. The ACP dispatcher does not use it directly; it relays
// the HTTP surface's error message as an error tool result.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of wire-level translation.
type Kind int

const (
	// KindValidation covers malformed bodies, missing required fields,
	// illegal status transitions, and bad enum values.
	KindValidation Kind = iota
	// KindNotFound covers references to a session or annotation that
	// does not exist.
	KindNotFound
	// KindUnauthorized covers a missing or mismatched bearer credential.
	KindUnauthorized
	// KindTransient covers store I/O failures, event bus overflow, and
	// webhook delivery failures that are recoverable locally.
	KindTransient
	// KindFatal covers startup failures the supervisor must not mask.
	KindFatal
)

// Error wraps an underlying cause with a Kind and, for not-found errors,
// the kind of entity and id that was missing.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	cause  error
}

func (e *Error) Error() string {
	if e.Kind == KindNotFound {
		return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return "error"
}

func (e *Error) Unwrap() error { return e.cause }

// Validation builds a KindValidation error with the given reason.
func Validation(reason string) error {
	return &Error{Kind: KindValidation, cause: errors.New(reason)}
}

// Validationf builds a KindValidation error with a formatted reason.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, cause: fmt.Errorf(format, args...)}
}

// NotFound builds a KindNotFound error naming the missing entity and id.
func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(reason string) error {
	return &Error{Kind: KindUnauthorized, cause: errors.New(reason)}
}

// Transient wraps a recoverable I/O-class failure.
func Transient(op string, cause error) error {
	return &Error{Kind: KindTransient, cause: fmt.Errorf("%s: %w", op, cause)}
}

// Fatal wraps a startup failure the supervisor must surface and exit on.
func Fatal(op string, cause error) error {
	return &Error{Kind: KindFatal, cause: fmt.Errorf("%s: %w", op, cause)}
}

// KindOf reports the Kind of err, defaulting to KindTransient for errors
// that were not constructed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// Is reports whether err (or a wrapped cause) is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
