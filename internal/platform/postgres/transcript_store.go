package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// PostgresTranscriptStore implements the store.TranscriptStore interface
// using PostgreSQL.
type PostgresTranscriptStore struct {
	db store.DBTX
}

// NewPostgresTranscriptStore creates a new PostgresTranscriptStore.
func NewPostgresTranscriptStore(db store.DBTX) *PostgresTranscriptStore {
	return &PostgresTranscriptStore{
		db: db,
	}
}

// WithTx returns a new TranscriptStore bound to the given transaction.
func (s *PostgresTranscriptStore) WithTx(tx *sql.Tx) store.TranscriptStore {
	return &PostgresTranscriptStore{db: tx}
}

// GetPerson loads a person by ID.
func (s *PostgresTranscriptStore) GetPerson(ctx context.Context, personID string) (*domain.Person, error) {
	query := `SELECT id, city_id, name FROM people WHERE id = $1`

	var p domain.Person
	err := s.db.QueryRowContext(ctx, query, personID).Scan(&p.ID, &p.CityID, &p.Name)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrPersonNotFound
		}
		return nil, MapError(err)
	}

	return &p, nil
}

// DeleteSpeakerData removes all speaker segments, tags and utterances of the
// meeting. Utterances and tags hang off segments, so deleting children first
// keeps foreign keys satisfied.
func (s *PostgresTranscriptStore) DeleteSpeakerData(ctx context.Context, cityID, meetingID string) error {
	log := logger.FromContext(ctx)

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM utterances
		WHERE segment_id IN (
			SELECT id FROM speaker_segments
			WHERE city_id = $1 AND council_meeting_id = $2
		)
	`, cityID, meetingID)
	if err != nil {
		return MapError(fmt.Errorf("failed to delete utterances: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM speaker_tags
		WHERE id IN (
			SELECT speaker_tag_id FROM speaker_segments
			WHERE city_id = $1 AND council_meeting_id = $2
		)
	`, cityID, meetingID)
	if err != nil {
		return MapError(fmt.Errorf("failed to delete speaker tags: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM speaker_segments
		WHERE city_id = $1 AND council_meeting_id = $2
	`, cityID, meetingID)
	if err != nil {
		return MapError(fmt.Errorf("failed to delete speaker segments: %w", err))
	}

	log.Debug("deleted speaker data",
		"city_id", cityID,
		"council_meeting_id", meetingID)
	return nil
}

// CreateSegments bulk-creates speaker segments with their tags and utterances.
func (s *PostgresTranscriptStore) CreateSegments(ctx context.Context, cityID, meetingID string, segments []store.SegmentWithUtterances) error {
	for _, seg := range segments {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO speaker_tags (id, label, person_id)
			VALUES ($1, $2, NULLIF($3, ''))
		`, seg.Tag.ID, seg.Tag.Label, seg.Tag.PersonID)
		if err != nil {
			return MapError(fmt.Errorf("failed to insert speaker tag %s: %w", seg.Tag.ID, err))
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO speaker_segments (id, city_id, council_meeting_id,
				start_timestamp, end_timestamp, speaker_tag_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			seg.Segment.ID,
			cityID,
			meetingID,
			seg.Segment.StartTimestamp,
			seg.Segment.EndTimestamp,
			seg.Segment.SpeakerTagID,
		)
		if err != nil {
			return MapError(fmt.Errorf("failed to insert speaker segment %s: %w", seg.Segment.ID, err))
		}

		for _, utt := range seg.Utterances {
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO utterances (id, segment_id, text,
					start_timestamp, end_timestamp, uncertain)
				VALUES ($1, $2, $3, $4, $5, $6)
			`,
				utt.ID,
				seg.Segment.ID,
				utt.Text,
				utt.StartTimestamp,
				utt.EndTimestamp,
				utt.Uncertain,
			)
			if err != nil {
				return MapError(fmt.Errorf("failed to insert utterance %s: %w", utt.ID, err))
			}
		}
	}

	return nil
}

// UpdateUtterance patches an utterance's text and uncertainty flag.
func (s *PostgresTranscriptStore) UpdateUtterance(ctx context.Context, utteranceID, text string, uncertain bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE utterances SET text = $1, uncertain = $2 WHERE id = $3`,
		text, uncertain, utteranceID)
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "utterance"); err != nil {
		return store.ErrUtteranceNotFound
	}

	return nil
}

// ReplacePodcastParts deletes and recreates the meeting's podcast parts.
func (s *PostgresTranscriptStore) ReplacePodcastParts(ctx context.Context, cityID, meetingID string, parts []*domain.PodcastPart) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM podcast_parts WHERE city_id = $1 AND council_meeting_id = $2`,
		cityID, meetingID); err != nil {
		return MapError(fmt.Errorf("failed to delete podcast parts: %w", err))
	}

	for _, p := range parts {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO podcast_parts (id, city_id, council_meeting_id,
				part_index, text, audio_segment_url, duration)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		`,
			p.ID,
			cityID,
			meetingID,
			p.Index,
			p.Text,
			p.AudioSegmentURL,
			p.Duration,
		)
		if err != nil {
			return MapError(fmt.Errorf("failed to insert podcast part %s: %w", p.ID, err))
		}
	}

	return nil
}

// AttachPodcastAudio sets the produced audio segment URL and duration on a
// podcast part.
func (s *PostgresTranscriptStore) AttachPodcastAudio(ctx context.Context, partID, audioURL string, duration float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE podcast_parts SET audio_segment_url = $1, duration = $2 WHERE id = $3`,
		audioURL, duration, partID)
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "podcast part"); err != nil {
		return store.ErrPodcastPartNotFound
	}

	return nil
}

// SetHighlightVideo sets the rendered video URL on a highlight.
func (s *PostgresTranscriptStore) SetHighlightVideo(ctx context.Context, highlightID, videoURL string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE highlights SET video_url = $1 WHERE id = $2`,
		videoURL, highlightID)
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "highlight"); err != nil {
		return store.ErrHighlightNotFound
	}

	return nil
}

// SaveVoiceprint persists a speaker-identification embedding. The embedding
// is stored as jsonb.
func (s *PostgresTranscriptStore) SaveVoiceprint(ctx context.Context, vp *domain.Voiceprint) error {
	embedding, err := json.Marshal(vp.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode voiceprint embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO voiceprints (id, person_id, source_segment_id, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, vp.ID, vp.PersonID, vp.SourceSegmentID, embedding, vp.CreatedAt)
	if err != nil {
		return MapError(fmt.Errorf("failed to save voiceprint: %w", err))
	}

	return nil
}
