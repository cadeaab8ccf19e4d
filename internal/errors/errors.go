// Package errors provides the coded error taxonomy shared by the sync
// engine. Every error surfaced to a caller carries one of the kinds
// below so the UI can pick recovery behavior without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an engine error.
type Kind string

const (
	// KindValidation rejects a payload before any state mutation
	// (duplicate tag, dam equal to sire). Fully recoverable.
	KindValidation Kind = "VALIDATION"

	// KindPrecondition marks an operation structurally disallowed in
	// the current connectivity state (offline document upload, child
	// record for an unconfirmed parent).
	KindPrecondition Kind = "PRECONDITION"

	// KindStorage is a local persistence failure. Fatal to the
	// attempted operation, not to the process.
	KindStorage Kind = "STORAGE"

	// KindNetwork is a transport-level failure, distinct from a
	// server-returned error body.
	KindNetwork Kind = "NETWORK"

	// KindServer means the remote store rejected the request. Fields
	// holds the server's field-level message map when present.
	KindServer Kind = "SERVER"

	// KindNotFound marks a missing entity, local or remote.
	KindNotFound Kind = "NOT_FOUND"

	// KindAuth marks an expired or rejected session token.
	KindAuth Kind = "AUTH"
)

// Error is the engine's error type.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // field name -> human-readable message
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
		}
		msg = msg + " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Field creates a validation error naming the offending field.
func Field(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "validation failed",
		Fields:  map[string]string{field: message},
	}
}

// Is reports whether err is an engine Error of the given kind,
// unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// FieldErrors returns the field-level message map carried by err, or
// nil when err is not an engine Error or has none.
func FieldErrors(err error) map[string]string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Fields
	}
	return nil
}
