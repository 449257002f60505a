package postgres

import (
	"context"
	"database/sql"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// PostgresDecisionStore implements the store.DecisionStore interface using PostgreSQL.
type PostgresDecisionStore struct {
	db store.DBTX
}

// NewPostgresDecisionStore creates a new PostgresDecisionStore.
func NewPostgresDecisionStore(db store.DBTX) *PostgresDecisionStore {
	return &PostgresDecisionStore{
		db: db,
	}
}

// WithTx returns a new DecisionStore bound to the given transaction.
func (s *PostgresDecisionStore) WithTx(tx *sql.Tx) store.DecisionStore {
	return &PostgresDecisionStore{db: tx}
}

// UpsertBySubject creates or updates the decision linked to the given
// subject. The subject_id unique constraint makes replays of the same poll
// result idempotent.
func (s *PostgresDecisionStore) UpsertBySubject(ctx context.Context, d *domain.Decision) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO decisions (id, subject_id, document_url, protocol_number,
			official_id, title, issue_date, task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subject_id) DO UPDATE
		SET document_url = EXCLUDED.document_url,
			protocol_number = EXCLUDED.protocol_number,
			official_id = EXCLUDED.official_id,
			title = EXCLUDED.title,
			issue_date = EXCLUDED.issue_date,
			task_id = EXCLUDED.task_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	// On conflict the existing row's ID wins; read it back so the caller can
	// link the subject to the decision that actually exists.
	err := s.db.QueryRowContext(ctx, query,
		d.ID,
		d.SubjectID,
		d.DocumentURL,
		d.ProtocolNumber,
		d.OfficialID,
		d.Title,
		d.IssueDate,
		d.TaskID,
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		log.Error("failed to upsert decision",
			"subject_id", d.SubjectID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetBySubject loads the decision linked to the given subject.
func (s *PostgresDecisionStore) GetBySubject(ctx context.Context, subjectID string) (*domain.Decision, error) {
	query := `
		SELECT id, subject_id, document_url, protocol_number, official_id,
			title, issue_date, task_id, created_at, updated_at
		FROM decisions
		WHERE subject_id = $1
	`

	var d domain.Decision
	var protocolNumber, officialID, title sql.NullString

	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&d.ID,
		&d.SubjectID,
		&d.DocumentURL,
		&protocolNumber,
		&officialID,
		&title,
		&d.IssueDate,
		&d.TaskID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, MapError(err)
	}

	d.ProtocolNumber = protocolNumber.String
	d.OfficialID = officialID.String
	d.Title = title.String

	return &d, nil
}

// CountForMeeting counts decisions linked to subjects of the given meeting.
func (s *PostgresDecisionStore) CountForMeeting(ctx context.Context, cityID, meetingID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM decisions d
		JOIN subjects s ON s.id = d.subject_id
		WHERE s.city_id = $1 AND s.council_meeting_id = $2
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, cityID, meetingID).Scan(&count); err != nil {
		return 0, MapError(err)
	}

	return count, nil
}
