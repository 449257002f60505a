package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
)

// PollWindow summarizes the successful pollDecisions history for one meeting.
// FirstPolledAt and LastPolledAt are nil when the meeting has never been
// successfully polled.
type PollWindow struct {
	FirstPolledAt *time.Time
	LastPolledAt  *time.Time
	PollCount     int
}

// CityPollStats is one row of the per-city polling report.
type CityPollStats struct {
	CityID        string
	MeetingCount  int
	PollCount     int
	DecisionCount int
	LastPolledAt  *time.Time
}

// TaskStore defines the interface for persisting task attempts.
type TaskStore interface {
	// Create persists a new task record.
	Create(ctx context.Context, task *domain.Task) error

	// Update persists the mutable fields of an existing task (status,
	// request/response bodies, stage, percent complete, version).
	// Returns ErrTaskNotFound if no task with the given ID exists.
	Update(ctx context.Context, task *domain.Task) error

	// GetByID loads a task by its ID. Returns ErrTaskNotFound if missing.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// FindNewestSucceeded returns the most recent succeeded task of the given
	// type for the given scope, or ErrTaskNotFound if none exists.
	FindNewestSucceeded(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error)

	// FindRunning returns the most recent task of the given type for the
	// given scope whose status is neither succeeded nor failed, or
	// ErrTaskNotFound if none is in flight.
	FindRunning(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error)

	// FindPendingCreatedAfter returns the most recent still-pending task of
	// the given type for the given scope created after the given time, or
	// ErrTaskNotFound. Used by the single-subject poll rate limiter.
	FindPendingCreatedAfter(ctx context.Context, taskType domain.TaskType, cityID, meetingID string, after time.Time) (*domain.Task, error)

	// ListByScope returns all tasks of the given type for the given scope,
	// newest first. Used for admin history views.
	ListByScope(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) ([]*domain.Task, error)

	// PollWindow aggregates succeeded pollDecisions tasks for the given
	// scope into first/last poll timestamps and a count.
	PollWindow(ctx context.Context, cityID, meetingID string) (*PollWindow, error)

	// PollStatsByCity groups succeeded pollDecisions tasks per city.
	PollStatsByCity(ctx context.Context) ([]CityPollStats, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
