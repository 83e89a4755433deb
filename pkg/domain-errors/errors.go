// Package domainerrors provides coded domain errors so services can signal
// intent (validation, conflict, exhaustion, ...) without handlers inspecting
// error strings. Stores return sentinel errors; services translate them into
// coded errors; the HTTP layer maps codes to status lines.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation rejects malformed input before any write.
	CodeValidation Code = "validation"
	// CodeBadRequest rejects requests the transport could not even interpret.
	CodeBadRequest Code = "bad_request"
	// CodeConflict rejects writes that would violate a uniqueness or state rule.
	CodeConflict Code = "conflict"
	// CodeNotFound reports a missing entity.
	CodeNotFound Code = "not_found"
	// CodeFailedPrecondition reports an operation against missing configuration,
	// e.g. a card number outside every registered range.
	CodeFailedPrecondition Code = "failed_precondition"
	// CodeExhausted reports a drained resource pool.
	CodeExhausted Code = "exhausted"
	// CodeUnauthorized rejects requests without a valid admin identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvariantViolation marks a model-level invariant breach. Services
	// usually rewrap it as validation or conflict before it reaches transport.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout reports a cancelled or expired context.
	CodeTimeout Code = "timeout"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error from a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeFailedPrecondition, CodeExhausted:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
