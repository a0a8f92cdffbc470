// Package apperr defines the error taxonomy shared by services and handlers.
// Every error a service returns is classified by Kind so that handlers can
// pick the right HTTP status and retry helpers can tell transient faults
// apart from caller mistakes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and retry decisions.
type Kind int

const (
	// KindValidation is malformed or missing caller input. Non-retryable.
	KindValidation Kind = iota
	// KindUnauthorized means no usable identity was supplied. Non-retryable.
	KindUnauthorized
	// KindForbidden is an ownership or identity mismatch. Non-retryable.
	KindForbidden
	// KindNotFound means the target record does not exist. Non-retryable.
	KindNotFound
	// KindConflict is a duplicate-write rejection; the caller must change
	// intent rather than retry. Non-retryable.
	KindConflict
	// KindTransient is a store timeout, network failure or dependency 5xx.
	// Eligible for bounded retry with backoff.
	KindTransient
)

// Error carries a Kind together with a caller-facing message. Fields holds
// optional per-field validation messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. A nil err yields nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a validation error with per-field messages.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf extracts the Kind of err. Unclassified errors are treated as
// transient infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsRetryable reports whether err is worth retrying. Only transient faults
// qualify; validation, authorization, not-found and conflict errors must be
// surfaced immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindTransient
}

// HTTPStatus maps an error to the response status code for the REST surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
