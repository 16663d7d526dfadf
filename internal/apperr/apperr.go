// Package apperr defines the error kinds every core operation reports.
// The request layer maps kinds to responses; the core never exposes a
// partially applied mutation alongside an error.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Classify with errors.Is.
var (
	// ErrValidation marks malformed input or a violated domain invariant.
	ErrValidation = errors.New("validation error")

	// ErrPermissionDenied marks an actor lacking a permission bit, an
	// inactive membership, a disabled feature flag, or a tenant mismatch.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound marks a reference that does not resolve within its scope.
	ErrNotFound = errors.New("not found")

	// ErrConfig marks a caller or configuration defect (e.g. an unknown
	// permission key). Distinct from a denial: it should not be retried
	// or rendered as an authorization failure.
	ErrConfig = errors.New("configuration error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// PermissionDenied returns a permission-denied error with a formatted message.
func PermissionDenied(format string, args ...any) error {
	return &kindError{kind: ErrPermissionDenied, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error with a formatted message.
func NotFound(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Config returns a configuration error with a formatted message.
func Config(format string, args ...any) error {
	return &kindError{kind: ErrConfig, msg: fmt.Sprintf(format, args...)}
}
