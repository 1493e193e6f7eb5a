// Package apperror defines the error taxonomy surfaced to callers.  Every
// failure leaving the service layer is an *Error carrying a stable Kind and
// a human-readable message.  Handlers translate the Kind into an HTTP status
// and never expose the wrapped cause.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	Unauthenticated     Kind = "unauthenticated"
	RoleMismatch        Kind = "role_mismatch"
	OwnershipMismatch   Kind = "ownership_mismatch"
	NotFoundOrForbidden Kind = "not_found_or_forbidden"
	Validation          Kind = "validation_error"
	Conflict            Kind = "conflict"
	NotFound            Kind = "not_found"
	Forbidden           Kind = "forbidden"
	Storage             Kind = "storage_error"
)

// Error is the concrete error type for all classified failures.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// StorageFailure wraps an unexpected persistence error.  The message is
// generic on purpose; the cause is kept for logs only.
func StorageFailure(err error) *Error {
	return &Error{Kind: Storage, Message: "storage operation failed", Err: err}
}

// KindOf returns the Kind of err, or Storage when err is not classified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Storage
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps a Kind to the status code used by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case RoleMismatch, OwnershipMismatch, Forbidden:
		return http.StatusForbidden
	case NotFoundOrForbidden, NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload returned to HTTP callers.
type Body struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// Response returns the status and payload describing err.  Unclassified
// errors become a generic storage failure so driver text never leaks.
func Response(err error) (int, Body) {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, Body{Error: Storage, Message: "storage operation failed"}
	}
	return HTTPStatus(ae.Kind), Body{Error: ae.Kind, Message: ae.Message}
}
