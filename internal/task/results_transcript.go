package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// transcribeRequestFlags is the slice of a transcribe request body the
// handler needs: whether the dispatch asked for a forced rebuild.
type transcribeRequestFlags struct {
	Force bool `json:"force,omitempty"`
}

// handleTranscribeResult rebuilds speaker tags and segments from the
// transcript. When the originating request carried force, prior speaker data
// is deleted first; otherwise existing segments are preserved and the new
// ones are appended (reprocess-only mode, accepting duplicates).
//
// Speaker-to-person matches are validated against existing person records
// before connecting; matches referencing unknown people are dropped with a
// log line rather than failing the whole transcript.
func (s *Service) handleTranscribeResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", t.ID)

	var parsed TranscribeResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse transcribe result: %w", err)
	}

	var flags transcribeRequestFlags
	if len(t.RequestBody) > 0 {
		// The request body always carries extra worker fields; only the
		// force flag matters here.
		if err := json.Unmarshal(t.RequestBody, &flags); err != nil {
			log.Warn("failed to parse transcribe request flags, assuming no force", "error", err)
		}
	}

	if flags.Force {
		if err := s.transcripts.DeleteSpeakerData(ctx, t.CityID, t.CouncilMeetingID); err != nil {
			return fmt.Errorf("failed to delete prior speaker data: %w", err)
		}
	}

	segments := make([]store.SegmentWithUtterances, 0, len(parsed.Segments))
	for i, seg := range parsed.Segments {
		tag := &domain.SpeakerTag{
			ID:    fmt.Sprintf("%s-tag-%d", t.ID, i),
			Label: seg.SpeakerLabel,
		}

		if seg.PersonID != "" {
			if _, err := s.transcripts.GetPerson(ctx, seg.PersonID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					log.Warn("transcript references unknown person, dropping match",
						"person_id", seg.PersonID,
						"speaker_label", seg.SpeakerLabel)
				} else {
					return fmt.Errorf("failed to validate person %s: %w", seg.PersonID, err)
				}
			} else {
				tag.PersonID = seg.PersonID
			}
		}

		utterances := make([]*domain.Utterance, 0, len(seg.Utterances))
		for j, u := range seg.Utterances {
			utterances = append(utterances, &domain.Utterance{
				ID:             fmt.Sprintf("%s-utt-%d-%d", t.ID, i, j),
				Text:           u.Text,
				StartTimestamp: u.StartTimestamp,
				EndTimestamp:   u.EndTimestamp,
				Uncertain:      u.Uncertain,
			})
		}

		segments = append(segments, store.SegmentWithUtterances{
			Segment: &domain.SpeakerSegment{
				ID:               fmt.Sprintf("%s-seg-%d", t.ID, i),
				CouncilMeetingID: t.CouncilMeetingID,
				CityID:           t.CityID,
				StartTimestamp:   seg.StartTimestamp,
				EndTimestamp:     seg.EndTimestamp,
				SpeakerTagID:     tag.ID,
			},
			Tag:        tag,
			Utterances: utterances,
		})
	}

	if err := s.transcripts.CreateSegments(ctx, t.CityID, t.CouncilMeetingID, segments); err != nil {
		return fmt.Errorf("failed to create transcript segments: %w", err)
	}

	log.Info("transcript applied",
		"segment_count", len(segments),
		"forced_rebuild", flags.Force)
	return nil
}

// handleFixTranscriptResult patches utterance text and uncertainty flags.
// Individually missing utterance IDs are tolerated so one stale reference
// cannot fail the whole batch.
func (s *Service) handleFixTranscriptResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", t.ID)

	var parsed FixTranscriptResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse fixTranscript result: %w", err)
	}

	var patched, missing int
	for _, patch := range parsed.UpdatedUtterances {
		err := s.transcripts.UpdateUtterance(ctx, patch.UtteranceID, patch.Text, patch.MarkUncertain)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				missing++
				log.Warn("utterance patch references missing utterance, skipping",
					"utterance_id", patch.UtteranceID)
				continue
			}
			return fmt.Errorf("failed to patch utterance %s: %w", patch.UtteranceID, err)
		}
		patched++
	}

	log.Info("transcript fixes applied", "patched", patched, "missing", missing)
	return nil
}
