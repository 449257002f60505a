package api

import (
	"errors"
	"net/http"

	"github.com/civora/civora-api/internal/service/auth"
	"github.com/civora/civora-api/internal/store"
	"github.com/civora/civora-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, auth.ErrCityNotAllowed):
		return http.StatusForbidden

	// Idempotency guard rejections
	case errors.Is(err, task.ErrAlreadySucceeded),
		errors.Is(err, task.ErrAlreadyRunning):
		return http.StatusConflict

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrCityNotFound),
		errors.Is(err, store.ErrMeetingNotFound),
		errors.Is(err, store.ErrSubjectNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrUnsupportedTaskType):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrCityNotAllowed):
		return "No access to this city"

	case errors.Is(err, task.ErrAlreadySucceeded):
		return "Task already succeeded for this meeting"

	case errors.Is(err, task.ErrAlreadyRunning):
		return "Task already running for this meeting"

	case errors.Is(err, task.ErrUnsupportedTaskType):
		return "Unsupported task type"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrCityNotFound):
		return "City not found"

	case errors.Is(err, store.ErrMeetingNotFound):
		return "Meeting not found"

	case errors.Is(err, store.ErrSubjectNotFound):
		return "Subject not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}
