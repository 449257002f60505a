package store

import (
	"context"
	"database/sql"

	"github.com/civora/civora-api/internal/domain"
)

// SegmentWithUtterances bundles a speaker segment, its tag and its utterances
// for bulk creation by the transcribe result handler.
type SegmentWithUtterances struct {
	Segment    *domain.SpeakerSegment
	Tag        *domain.SpeakerTag
	Utterances []*domain.Utterance
}

// TranscriptStore persists the transcript side of a meeting: speaker
// segments, tags, utterances, voiceprints and podcast parts.
type TranscriptStore interface {
	// GetPerson loads a person by ID. Returns ErrPersonNotFound if missing.
	// Used to validate speaker-to-person matches before connecting them.
	GetPerson(ctx context.Context, personID string) (*domain.Person, error)

	// DeleteSpeakerData removes all speaker segments, tags and utterances of
	// the meeting. Used by the transcribe handler when force is set.
	DeleteSpeakerData(ctx context.Context, cityID, meetingID string) error

	// CreateSegments bulk-creates speaker segments with their tags and
	// utterances.
	CreateSegments(ctx context.Context, cityID, meetingID string, segments []SegmentWithUtterances) error

	// UpdateUtterance patches an utterance's text and uncertainty flag.
	// Returns ErrUtteranceNotFound if the utterance does not exist.
	UpdateUtterance(ctx context.Context, utteranceID, text string, uncertain bool) error

	// ReplacePodcastParts deletes and recreates the meeting's podcast parts.
	ReplacePodcastParts(ctx context.Context, cityID, meetingID string, parts []*domain.PodcastPart) error

	// AttachPodcastAudio sets the produced audio segment URL and duration on
	// a podcast part. Returns ErrPodcastPartNotFound if missing.
	AttachPodcastAudio(ctx context.Context, partID, audioURL string, duration float64) error

	// SetHighlightVideo sets the rendered video URL on a highlight.
	// Returns ErrHighlightNotFound if missing.
	SetHighlightVideo(ctx context.Context, highlightID, videoURL string) error

	// SaveVoiceprint persists a speaker-identification embedding.
	SaveVoiceprint(ctx context.Context, voiceprint *domain.Voiceprint) error

	// WithTx returns a new TranscriptStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TranscriptStore
}
