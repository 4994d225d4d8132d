package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
//
// These are meant to be a small, stable set of codes that handlers can map to
// transport-level responses without inspecting error text.
const (
	ECONFLICT     = "conflict"     // action cannot be performed in the current state
	EINTERNAL     = "internal"     // internal error
	EINVALID      = "invalid"      // validation failed
	ENOTFOUND     = "not_found"    // entity does not exist
	EUNAUTHORIZED = "unauthorized" // access denied
	EFORBIDDEN    = "forbidden"    // action not allowed for this actor
	ETIMEOUT      = "timeout"      // operation exceeded its deadline
	ENOTIMPL      = "not_implemented"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract out the code & message.
//
// Any non-application error (such as a pgx error) should be reported as an
// EINTERNAL error and the human user should only see "Internal error" as the
// message. These low-level internal error details should only be logged and
// reported to the operator of the application (not the end user).
type Error struct {
	// Machine-readable error code.
	Code string

	// Human-readable error message.
	Message string

	// Logical operation that produced the error (e.g. "invoice.send").
	Op string

	// Wrapped underlying error, if any.
	Err error
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("norn error: code=%s message=%s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// ErrorOp unwraps an application error and returns the innermost operation tag.
func ErrorOp(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Errorf is a helper function to return an Error with a given code and
// formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an underlying error with an operation tag while preserving
// the original code and message for application errors.
func WrapError(op string, err error) *Error {
	return &Error{
		Code:    ErrorCode(err),
		Message: ErrorMessage(err),
		Op:      op,
		Err:     err,
	}
}

// IsCode reports whether err is an application error with the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NotFound returns an ENOTFOUND error with a formatted message.
func NotFound(format string, args ...interface{}) *Error {
	return Errorf(ENOTFOUND, format, args...)
}

// Invalid returns an EINVALID error with a formatted message.
func Invalid(format string, args ...interface{}) *Error {
	return Errorf(EINVALID, format, args...)
}

// Conflict returns an ECONFLICT error with a formatted message.
func Conflict(format string, args ...interface{}) *Error {
	return Errorf(ECONFLICT, format, args...)
}

// Unauthorized returns an EUNAUTHORIZED error with a formatted message.
func Unauthorized(format string, args ...interface{}) *Error {
	return Errorf(EUNAUTHORIZED, format, args...)
}

// Internal returns an EINTERNAL error wrapping the given cause.
func Internal(op string, err error) *Error {
	return &Error{
		Code:    EINTERNAL,
		Message: "Internal error.",
		Op:      op,
		Err:     err,
	}
}
