package domainerrors

import "errors"

// Code represents a failure category independent of the transport that surfaced it.
// The front end only ever sees four kinds of failure: the backend could not be
// reached, the backend rejected our credentials, the input was invalid, or the
// backend answered with something we could not understand.
type Code string

const (
	// Transport failures.
	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"

	// Authentication rejection (missing, invalid or expired bearer token).
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	// Validation failures, detected locally or reported by the backend.
	CodeValidation Code = "validation_failed"
	CodeBadRequest Code = "bad_request"
	CodeConflict   Code = "conflict"

	// Unexpected response shape.
	CodeMalformedResponse Code = "malformed_response"

	CodeNotFound Code = "not_found"
	CodeInternal Code = "internal_error"
)

// Error wraps a failure with a stable code and a message that is safe to show to users.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsTransport reports whether err means the backend could not be reached in time.
func IsTransport(err error) bool {
	return HasCode(err, CodeUnavailable) || HasCode(err, CodeTimeout)
}

// UserMessage returns the text shown next to a failed action. Validation and
// backend-provided messages pass through; everything else gets a generic sentence
// so internal details never reach the page.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Code {
	case CodeValidation, CodeBadRequest, CodeConflict, CodeNotFound, CodeForbidden:
		if e.Message != "" {
			return e.Message
		}
	case CodeUnauthorized:
		return "Your session has expired. Please sign in again."
	case CodeUnavailable, CodeTimeout:
		return "The server could not be reached. Please try again."
	case CodeMalformedResponse:
		return "The server sent an unexpected response."
	}
	return "Something went wrong. Please try again."
}
