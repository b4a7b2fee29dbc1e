// Package apperr provides typed domain errors. Services attach a Kind to
// failures so callers can branch on the category without matching strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindConflict indicates a conflict with existing state (e.g., an illegal
	// message status transition).
	KindConflict
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a request an upstream service rejected as
	// invalid; retrying will not help.
	KindBadRequest
	// KindUnavailable indicates a dependency (CRM, LLM, messaging provider)
	// could not be reached after retries.
	KindUnavailable
)

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if the error chain contains an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
