// Package apperror defines the error kinds the service layer returns.
//
// ERROR KINDS:
// Every failure a caller can see falls into one of these buckets:
//   - ErrValidation  → caller input broke a precondition, nothing was written
//   - ErrNotFound    → the requested quote is absent or not visible to the caller
//   - ErrConflict    → a business rule rejected the write (zero rows affected)
//   - ErrForbidden   → the caller lacks the privilege for the route
//   - ErrUnavailable → a collaborator (directory) could not be reached
//
// Anything that is not an *AppError is an infrastructure failure and is
// reported to the caller as an internal error.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // caller-visible message
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Rejected reports a business-rule conflict: the store affected zero rows
// because the target is missing, not owned by the caller, already in the
// requested state, or not visible to the caller.
func Rejected(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unavailable wraps a transport failure of an external collaborator.
func Unavailable(service string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrUnavailable, service, err),
		Message: fmt.Sprintf("%s is unavailable", service),
	}
}
