// Package domainerrors provides code-carrying errors for the custody domain.
//
// Services return these so transport layers can map failures to responses
// without string matching, and so callers can branch on the kind of failure
// (authorization, transition, lookup, input) rather than its wording.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeUnauthorized: caller lacks the required role, is not the current
	// custodian, or is not the responsible party for the stage.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidTransition: the requested state change is not legal from the
	// current state (advancing past the last stage, re-breaking a seal).
	CodeInvalidTransition Code = "invalid_transition"
	// CodeNotFound: unknown shipment, participant, or zone.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput: malformed location, signature, or reading payload.
	CodeInvalidInput Code = "invalid_input"
	// CodeConflict: the write lost to a concurrent conflicting write.
	CodeConflict Code = "conflict"
	// CodeValidation: request-level validation failure before domain logic.
	CodeValidation Code = "validation"
	// CodeInternal: infrastructure failure surfaced to the caller.
	CodeInternal Code = "internal"
)

// Error is a domain error with a classification code. The Field is optional
// and names the offending input when the failure is input-related.
type Error struct {
	Code    Code
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches by code and message so callers can compare against a freshly
// constructed error with errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithField creates a domain error that names the offending field.
func WithField(code Code, message, field string) error {
	return &Error{Code: code, Message: message, Field: field}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As inspection.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost domain code, or CodeInternal when err carries
// none. Useful for metrics labels and HTTP status mapping.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldOf returns the offending field name recorded on err, if any.
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
