// Package apperr defines the typed failures returned by the order, board,
// inventory, alert and quality components.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound          Kind = "not_found"
	InvalidArgument   Kind = "invalid_argument"
	InvalidTransition Kind = "invalid_transition"
	InsufficientStock Kind = "insufficient_stock"
	Conflict          Kind = "conflict"
	Internal          Kind = "internal"
)

// Error is a classified failure. Existing is set on Conflict errors that
// resolve to an entity already in the store (duplicate alert, replayed request).
type Error struct {
	Kind     Kind
	Msg      string
	Existing any
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as Internal unless it already carries a kind.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: Internal, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithExisting returns a Conflict error carrying the entity that caused it.
func WithExisting(existing any, format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...), Existing: existing}
}

// KindOf reports the kind of err. Unclassified non-nil errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExistingOf returns the entity attached to a Conflict error, if any.
func ExistingOf(err error) any {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Existing
	}
	return nil
}
