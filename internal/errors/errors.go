// Package errors provides structured error handling for the monitor core.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a stable tag describing the class of failure. It is the only
// part of an error the API surface keys off when shaping responses.
type Kind string

// Error kinds.
const (
	// KindNotFound indicates a referenced id is absent.
	KindNotFound Kind = "NOT_FOUND"
	// KindForbidden indicates the user lacks the required permission.
	KindForbidden Kind = "FORBIDDEN"
	// KindDuplicateName indicates a unique name constraint violation.
	KindDuplicateName Kind = "DUPLICATE_NAME"
	// KindDuplicateKey indicates a unique key violation at the store.
	KindDuplicateKey Kind = "DUPLICATE_KEY"
	// KindValidation indicates malformed input.
	KindValidation Kind = "VALIDATION"
	// KindPeripheryUnreachable indicates a transport failure to an agent.
	KindPeripheryUnreachable Kind = "PERIPHERY_UNREACHABLE"
	// KindPeripheryBusy indicates the builder refused to start.
	KindPeripheryBusy Kind = "PERIPHERY_BUSY"
	// KindBackend indicates a document store failure.
	KindBackend Kind = "BACKEND"
	// KindInternal indicates an invariant violation.
	KindInternal Kind = "INTERNAL"
)

// Error is a structured error with a kind, message, and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err (or any error it wraps) carries the kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
