// Package apperror defines the domain errors shared by the service and
// handler layers. Services return these; handlers map the sentinel in the
// chain to an HTTP status (see handler.writeError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("Validation Error")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSubscriptionRequired = errors.New("subscription required")
	ErrUnavailable          = errors.New("unavailable")
)

// Detail describes one failed check inside a validation error.
type Detail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error    // sentinel, matched with errors.Is
	Message string   // Human-readable error message
	Field   string   // Optional: field causing the error
	Details []Detail // Optional: every failed check, for schema validation
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

// InvalidRequest is a validation error carrying one detail per failed check.
func InvalidRequest(message string, details []Detail) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Details: details,
	}
}

// Conflict reports a uniqueness or state clash, e.g. a duplicate slug.
// HTTP handlers map this to 409 Conflict.
func Conflict(message string) *AppError {
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

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// SubscriptionRequired is returned when premium content is requested by a
// caller the entitlement policy does not admit.
func SubscriptionRequired(message string) *AppError {
	return &AppError{
		Err:     ErrSubscriptionRequired,
		Message: message,
	}
}

// Unavailable marks a collaborator that is not configured or not reachable.
// HTTP handlers map this to 503 Service Unavailable.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
