package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// PostgresMeetingStore implements the store.MeetingStore interface using PostgreSQL.
type PostgresMeetingStore struct {
	db store.DBTX
}

// NewPostgresMeetingStore creates a new PostgresMeetingStore.
func NewPostgresMeetingStore(db store.DBTX) *PostgresMeetingStore {
	return &PostgresMeetingStore{
		db: db,
	}
}

// GetCity loads a city by ID.
func (s *PostgresMeetingStore) GetCity(ctx context.Context, cityID string) (*domain.City, error) {
	query := `
		SELECT id, name, COALESCE(registry_id, '')
		FROM cities
		WHERE id = $1
	`

	var city domain.City
	err := s.db.QueryRowContext(ctx, query, cityID).Scan(
		&city.ID,
		&city.Name,
		&city.RegistryID,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrCityNotFound
		}
		return nil, MapError(err)
	}

	return &city, nil
}

// GetMeeting loads a meeting scoped to its city.
func (s *PostgresMeetingStore) GetMeeting(ctx context.Context, cityID, meetingID string) (*domain.CouncilMeeting, error) {
	query := `
		SELECT id, city_id, name, date, COALESCE(administrative_body_id, ''),
			COALESCE(media_url, '')
		FROM council_meetings
		WHERE city_id = $1 AND id = $2
	`

	var meeting domain.CouncilMeeting
	err := s.db.QueryRowContext(ctx, query, cityID, meetingID).Scan(
		&meeting.ID,
		&meeting.CityID,
		&meeting.Name,
		&meeting.Date,
		&meeting.AdministrativeBodyID,
		&meeting.MediaURL,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrMeetingNotFound
		}
		return nil, MapError(err)
	}

	return &meeting, nil
}

// GetAdministrativeBody loads an administrative body by ID.
func (s *PostgresMeetingStore) GetAdministrativeBody(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error) {
	query := `
		SELECT id, city_id, name, COALESCE(notification_policy, 'none'),
			COALESCE(registry_unit_ids, '[]')
		FROM administrative_bodies
		WHERE id = $1
	`

	var body domain.AdministrativeBody
	var unitIDs []byte
	err := s.db.QueryRowContext(ctx, query, bodyID).Scan(
		&body.ID,
		&body.CityID,
		&body.Name,
		&body.NotificationPolicy,
		&unitIDs,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrBodyNotFound
		}
		return nil, MapError(err)
	}

	// registry_unit_ids is stored as jsonb.
	if len(unitIDs) > 0 {
		if err := json.Unmarshal(unitIDs, &body.RegistryUnitIDs); err != nil {
			return nil, fmt.Errorf("failed to decode registry unit IDs for body %s: %w", bodyID, err)
		}
	}

	return &body, nil
}

// ListPollCandidates returns recent meetings in registry-enabled cities that
// still have agenda subjects without a linked decision.
func (s *PostgresMeetingStore) ListPollCandidates(ctx context.Context, since time.Time, limit int) ([]store.PollCandidate, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT m.city_id, m.id, c.registry_id, m.date
		FROM council_meetings m
		JOIN cities c ON c.id = m.city_id
		WHERE m.date > $1
			AND c.registry_id IS NOT NULL AND c.registry_id <> ''
			AND EXISTS (
				SELECT 1 FROM subjects s
				WHERE s.city_id = m.city_id
					AND s.council_meeting_id = m.id
					AND s.agenda_item_index IS NOT NULL
					AND s.decision_id IS NULL
			)
		ORDER BY m.date DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		log.Error("failed to list poll candidates", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []store.PollCandidate
	for rows.Next() {
		var c store.PollCandidate
		if err := rows.Scan(&c.CityID, &c.MeetingID, &c.RegistryID, &c.Date); err != nil {
			return nil, fmt.Errorf("failed to scan poll candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating poll candidate rows: %w", err)
	}

	return candidates, nil
}
