package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// PostgresSubjectStore implements the store.SubjectStore interface using PostgreSQL.
type PostgresSubjectStore struct {
	db store.DBTX
}

// NewPostgresSubjectStore creates a new PostgresSubjectStore.
func NewPostgresSubjectStore(db store.DBTX) *PostgresSubjectStore {
	return &PostgresSubjectStore{
		db: db,
	}
}

// WithTx returns a new SubjectStore bound to the given transaction.
func (s *PostgresSubjectStore) WithTx(tx *sql.Tx) store.SubjectStore {
	return &PostgresSubjectStore{db: tx}
}

// GetByID loads a subject.
func (s *PostgresSubjectStore) GetByID(ctx context.Context, subjectID string) (*domain.Subject, error) {
	query := `
		SELECT id, city_id, council_meeting_id, name, COALESCE(description, ''),
			agenda_item_index, COALESCE(topic_id, ''), COALESCE(location_text, ''),
			decision_id
		FROM subjects
		WHERE id = $1
	`

	sub, err := scanSubject(s.db.QueryRowContext(ctx, query, subjectID))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrSubjectNotFound
		}
		return nil, MapError(err)
	}

	return sub, nil
}

// ListUnlinkedEligible returns subjects of the meeting that have an agenda
// item index and no linked decision.
func (s *PostgresSubjectStore) ListUnlinkedEligible(ctx context.Context, cityID, meetingID string) ([]*domain.Subject, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, city_id, council_meeting_id, name, COALESCE(description, ''),
			agenda_item_index, COALESCE(topic_id, ''), COALESCE(location_text, ''),
			decision_id
		FROM subjects
		WHERE city_id = $1 AND council_meeting_id = $2
			AND agenda_item_index IS NOT NULL
			AND decision_id IS NULL
		ORDER BY agenda_item_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cityID, meetingID)
	if err != nil {
		log.Error("failed to list eligible subjects",
			"city_id", cityID,
			"council_meeting_id", meetingID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var subjects []*domain.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject row: %w", err)
		}
		subjects = append(subjects, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject rows: %w", err)
	}

	return subjects, nil
}

// ReplaceForMeeting deletes all subjects and highlights of the meeting and
// recreates them from the given slices. Run inside a transaction via WithTx.
func (s *PostgresSubjectStore) ReplaceForMeeting(ctx context.Context, cityID, meetingID string, subjects []*domain.Subject, highlights []*domain.Highlight) error {
	log := logger.FromContext(ctx)

	// Highlights reference subjects, so they go first.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM highlights WHERE city_id = $1 AND council_meeting_id = $2`,
		cityID, meetingID); err != nil {
		return MapError(fmt.Errorf("failed to delete highlights: %w", err))
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM subjects WHERE city_id = $1 AND council_meeting_id = $2`,
		cityID, meetingID); err != nil {
		return MapError(fmt.Errorf("failed to delete subjects: %w", err))
	}

	for _, sub := range subjects {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO subjects (id, city_id, council_meeting_id, name,
				description, agenda_item_index, topic_id, location_text)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		`,
			sub.ID,
			sub.CityID,
			sub.CouncilMeetingID,
			sub.Name,
			sub.Description,
			sub.AgendaItemIndex,
			sub.TopicID,
			sub.LocationText,
		)
		if err != nil {
			return MapError(fmt.Errorf("failed to insert subject %s: %w", sub.ID, err))
		}
	}

	for _, h := range highlights {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO highlights (id, city_id, council_meeting_id, subject_id, name)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		`,
			h.ID,
			h.CityID,
			h.CouncilMeetingID,
			h.SubjectID,
			h.Name,
		)
		if err != nil {
			return MapError(fmt.Errorf("failed to insert highlight %s: %w", h.ID, err))
		}

		for _, uttID := range h.UtteranceIDs {
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO highlight_utterances (highlight_id, utterance_id)
				VALUES ($1, $2)
			`, h.ID, uttID)
			if err != nil {
				return MapError(fmt.Errorf("failed to link utterance to highlight %s: %w", h.ID, err))
			}
		}
	}

	log.Debug("replaced subjects for meeting",
		"city_id", cityID,
		"council_meeting_id", meetingID,
		"subject_count", len(subjects),
		"highlight_count", len(highlights))
	return nil
}

// LinkDecision points the subject at its discovered decision.
func (s *PostgresSubjectStore) LinkDecision(ctx context.Context, subjectID string, decisionID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET decision_id = $1 WHERE id = $2`,
		decisionID, subjectID)
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "subject"); err != nil {
		return store.ErrSubjectNotFound
	}

	return nil
}

func scanSubject(row rowScanner) (*domain.Subject, error) {
	var sub domain.Subject
	err := row.Scan(
		&sub.ID,
		&sub.CityID,
		&sub.CouncilMeetingID,
		&sub.Name,
		&sub.Description,
		&sub.AgendaItemIndex,
		&sub.TopicID,
		&sub.LocationText,
		&sub.DecisionID,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// PostgresNotificationStore implements the store.NotificationStore interface
// using PostgreSQL.
type PostgresNotificationStore struct {
	db store.DBTX
}

// NewPostgresNotificationStore creates a new PostgresNotificationStore.
func NewPostgresNotificationStore(db store.DBTX) *PostgresNotificationStore {
	return &PostgresNotificationStore{
		db: db,
	}
}

// Create persists a new meeting notification and its subject references.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.MeetingNotification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_notifications (id, city_id, council_meeting_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, n.ID, n.CityID, n.CouncilMeetingID, n.CreatedAt)
	if err != nil {
		return MapError(fmt.Errorf("failed to create meeting notification: %w", err))
	}

	for _, subjectID := range n.SubjectIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO meeting_notification_subjects (notification_id, subject_id)
			VALUES ($1, $2)
		`, n.ID, subjectID)
		if err != nil {
			return MapError(fmt.Errorf("failed to link subject to notification: %w", err))
		}
	}

	return nil
}

// MarkSent stamps the notification as sent.
func (s *PostgresNotificationStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE meeting_notifications SET sent_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "meeting notification")
}
