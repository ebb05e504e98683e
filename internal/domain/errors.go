package domain

import (
	"errors"
	"fmt"
)

// Application error codes. The HTTP layer maps each to a status.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	EFORBIDDEN    = "forbidden"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"
	ETOOLARGE     = "too_large"
	ERATELIMIT    = "rate_limit"
	EINTERNAL     = "internal"
	ENOTIMPL      = "not_impl"     // Gateway or feature not configured
	EUNAVAILABLE  = "unavailable"  // Upstream gateway failed or timed out
)

// genericMessage replaces the message of internal errors shown to users.
const genericMessage = "Ocorreu um erro interno. Tente novamente mais tarde."

// Error is an application error. Op names the failing operation
// ("entitlement.download"); Message is safe to show to the user unless
// Code is EINTERNAL.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Errorf creates an Error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code and operation to err.
func Wrap(err error, code, op, message string) *Error {
	return newError(code, op, message, err)
}

// asError returns the outermost *Error in err's chain.
func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code of err, EINTERNAL for foreign errors and ""
// for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the user-facing message of err. Internal and
// foreign errors collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return genericMessage
}

// ErrorOp returns the operation of err, if any.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

func NotFound(op, resource, id string) *Error {
	return newError(ENOTFOUND, op, fmt.Sprintf("%s %q not found", resource, id), nil)
}

func Invalid(op, message string) *Error { return newError(EINVALID, op, message, nil) }

func Unauthorized(op, message string) *Error { return newError(EUNAUTHORIZED, op, message, nil) }

func Forbidden(op, message string) *Error { return newError(EFORBIDDEN, op, message, nil) }

func Conflict(op, message string) *Error { return newError(ECONFLICT, op, message, nil) }

// Internal wraps an unexpected failure. Its message never reaches users.
func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Muitas tentativas. Aguarde um momento e tente novamente.", nil)
}

// Unavailable reports a transient upstream failure. The caller may retry.
func Unavailable(err error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, err)
}

// ValidationError carries per-field messages for form re-rendering.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}
