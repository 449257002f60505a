package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
)

// SubjectStore defines persistence for meeting subjects and highlights.
// ReplaceForMeeting is the delete-then-recreate operation used by the
// summarize and processAgenda result handlers; replays leave exactly one set
// of subjects for the meeting.
type SubjectStore interface {
	// GetByID loads a subject. Returns ErrSubjectNotFound if missing.
	GetByID(ctx context.Context, subjectID string) (*domain.Subject, error)

	// ListUnlinkedEligible returns subjects of the meeting that have an
	// agenda item index and no linked decision.
	ListUnlinkedEligible(ctx context.Context, cityID, meetingID string) ([]*domain.Subject, error)

	// ReplaceForMeeting deletes all subjects and highlights of the meeting
	// and recreates them from the given slices. Callers run it inside a
	// transaction via WithTx so readers never observe a half-deleted state.
	ReplaceForMeeting(ctx context.Context, cityID, meetingID string, subjects []*domain.Subject, highlights []*domain.Highlight) error

	// LinkDecision points the subject at its discovered decision.
	LinkDecision(ctx context.Context, subjectID string, decisionID uuid.UUID) error

	// WithTx returns a new SubjectStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SubjectStore
}

// NotificationStore persists meeting notifications created by the
// processAgenda cascade. Delivery itself happens elsewhere; SentAt records
// the auto-send outcome.
type NotificationStore interface {
	// Create persists a new meeting notification.
	Create(ctx context.Context, notification *domain.MeetingNotification) error

	// MarkSent stamps the notification as sent.
	MarkSent(ctx context.Context, id uuid.UUID) error
}
