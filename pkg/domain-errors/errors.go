// Package derrors provides coded domain errors.
//
// Services return these so callers (HTTP transport, CLI, admin actions) can
// map failures to user-visible outcomes without string matching. Stores
// return sentinel errors instead (pkg/platform/sentinel); services translate
// at the boundary.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput covers malformed or missing caller input.
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation covers business validation failures (duplicate email,
	// malformed CSV row, missing terms acceptance).
	CodeValidation Code = "validation"
	// CodeNotFound means the addressed entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict means the operation collides with existing state.
	CodeConflict Code = "conflict"
	// CodeUnauthorized means the caller presented no credential or an
	// invalid one.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means a phase flag is off, the caller holds the wrong
	// role, or the caller does not own the target entity.
	CodeForbidden Code = "forbidden"
	// CodeConfiguration means the persisted flag catalog is incomplete or
	// reference data is missing. Fatal to the triggering admin action.
	CodeConfiguration Code = "configuration"
	// CodeImmutable means a candidate edit was attempted after a vote was
	// recorded against it.
	CodeImmutable Code = "immutable_after_vote"
	// CodeQuotaExceeded means a vote would exceed the domain's seat count.
	CodeQuotaExceeded Code = "quota_exceeded"
	// CodeInvariantViolation marks an illegal state transition.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal is the fallback for unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
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
