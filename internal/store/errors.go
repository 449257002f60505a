package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrTaskNotFound, ErrMeetingNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrMeetingNotFound indicates that the requested council meeting does not exist.
	ErrMeetingNotFound = fmt.Errorf("%w: council meeting", ErrNotFound)

	// ErrCityNotFound indicates that the requested city does not exist.
	ErrCityNotFound = fmt.Errorf("%w: city", ErrNotFound)

	// ErrSubjectNotFound indicates that the requested subject does not exist.
	ErrSubjectNotFound = fmt.Errorf("%w: subject", ErrNotFound)

	// ErrPersonNotFound indicates that the requested person does not exist.
	ErrPersonNotFound = fmt.Errorf("%w: person", ErrNotFound)

	// ErrUtteranceNotFound indicates that the requested utterance does not exist.
	ErrUtteranceNotFound = fmt.Errorf("%w: utterance", ErrNotFound)

	// ErrHighlightNotFound indicates that the requested highlight does not exist.
	ErrHighlightNotFound = fmt.Errorf("%w: highlight", ErrNotFound)

	// ErrPodcastPartNotFound indicates that the requested podcast part does not exist.
	ErrPodcastPartNotFound = fmt.Errorf("%w: podcast part", ErrNotFound)

	// ErrBodyNotFound indicates that the requested administrative body does not exist.
	ErrBodyNotFound = fmt.Errorf("%w: administrative body", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "decision")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
