package store

import (
	"context"
	"database/sql"

	"github.com/civora/civora-api/internal/domain"
)

// DecisionStore defines the interface for persisting discovered decisions.
type DecisionStore interface {
	// UpsertBySubject creates or updates the decision linked to the given
	// subject. A subject holds at most one decision, so replays of the same
	// poll result are idempotent.
	UpsertBySubject(ctx context.Context, decision *domain.Decision) error

	// GetBySubject loads the decision linked to the given subject, or
	// ErrNotFound if the subject has none.
	GetBySubject(ctx context.Context, subjectID string) (*domain.Decision, error)

	// CountForMeeting counts decisions linked to subjects of the given meeting.
	CountForMeeting(ctx context.Context, cityID, meetingID string) (int, error)

	// WithTx returns a new DecisionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) DecisionStore
}
