package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
)

// applyResult dispatches a completed task's result to its handler. The switch
// is the fixed handler registry: every task type must have an arm here, and
// an unknown type fails loudly as a programming error.
//
// Handlers must tolerate being invoked twice with the same result (the worker
// may redeliver a success callback); they do so via delete-then-recreate and
// upsert patterns.
func (s *Service) applyResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	switch t.Type {
	case domain.TaskTypeTranscribe:
		return s.handleTranscribeResult(ctx, t, result)
	case domain.TaskTypeSummarize:
		return s.handleSummarizeResult(ctx, t, result, false)
	case domain.TaskTypeProcessAgenda:
		return s.handleSummarizeResult(ctx, t, result, true)
	case domain.TaskTypeFixTranscript:
		return s.handleFixTranscriptResult(ctx, t, result)
	case domain.TaskTypeGeneratePodcastSpec:
		return s.handlePodcastSpecResult(ctx, t, result)
	case domain.TaskTypeSplitMediaFile:
		return s.handleSplitMediaFileResult(ctx, t, result)
	case domain.TaskTypeGenerateVoiceprint:
		return s.handleVoiceprintResult(ctx, t, result)
	case domain.TaskTypeSyncElasticsearch:
		return s.handleSyncElasticsearchResult(ctx, t, result)
	case domain.TaskTypeGenerateHighlight:
		return s.handleHighlightResult(ctx, t, result)
	case domain.TaskTypePollDecisions:
		return s.handlePollDecisionsResult(ctx, t, result)
	case domain.TaskTypeHumanReview:
		// Human review has no automated side effect; the reviewed state lives
		// in the task record itself.
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTaskType, t.Type)
	}
}

// handleSplitMediaFileResult attaches produced audio segments to their
// podcast parts.
func (s *Service) handleSplitMediaFileResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	var parsed SplitMediaFileResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse splitMediaFile result: %w", err)
	}

	for _, seg := range parsed.Segments {
		if err := s.transcripts.AttachPodcastAudio(ctx, seg.PartID, seg.AudioURL, seg.Duration); err != nil {
			return fmt.Errorf("failed to attach audio to podcast part %s: %w", seg.PartID, err)
		}
	}

	return nil
}

// handleHighlightResult attaches the rendered video to its highlight record.
func (s *Service) handleHighlightResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	var parsed GenerateHighlightResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse generateHighlight result: %w", err)
	}

	if parsed.HighlightID == "" || parsed.VideoURL == "" {
		return fmt.Errorf("generateHighlight result missing highlight ID or video URL")
	}

	return s.transcripts.SetHighlightVideo(ctx, parsed.HighlightID, parsed.VideoURL)
}

// handleVoiceprintResult persists an embedding keyed to the originating
// segment and person.
func (s *Service) handleVoiceprintResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	var parsed GenerateVoiceprintResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse generateVoiceprint result: %w", err)
	}

	if _, err := s.transcripts.GetPerson(ctx, parsed.PersonID); err != nil {
		return fmt.Errorf("voiceprint references unknown person %s: %w", parsed.PersonID, err)
	}

	vp := &domain.Voiceprint{
		ID:              uuid.New(),
		PersonID:        parsed.PersonID,
		SourceSegmentID: parsed.SourceSegmentID,
		Embedding:       parsed.Embedding,
		CreatedAt:       s.now(),
	}

	return s.transcripts.SaveVoiceprint(ctx, vp)
}

// handleSyncElasticsearchResult records the worker-side sync outcome. The
// index itself lives with the worker, so there is nothing to write here.
func (s *Service) handleSyncElasticsearchResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	var parsed SyncElasticsearchResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse syncElasticsearch result: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("search index sync completed",
		"task_id", t.ID,
		"indexed_subjects", parsed.IndexedSubjects,
		"indexed_speeches", parsed.IndexedSpeeches)
	return nil
}

// handlePodcastSpecResult replaces the meeting's podcast parts with the
// generated spec.
func (s *Service) handlePodcastSpecResult(ctx context.Context, t *domain.Task, result json.RawMessage) error {
	var parsed PodcastSpecResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return fmt.Errorf("failed to parse generatePodcastSpec result: %w", err)
	}

	parts := make([]*domain.PodcastPart, 0, len(parsed.Parts))
	for _, p := range parsed.Parts {
		parts = append(parts, &domain.PodcastPart{
			ID:               fmt.Sprintf("%s-part-%d", t.CouncilMeetingID, p.Index),
			CouncilMeetingID: t.CouncilMeetingID,
			CityID:           t.CityID,
			Index:            p.Index,
			Text:             p.Text,
			AudioSegmentURL:  p.AudioSegmentURL,
			Duration:         p.Duration,
		})
	}

	return s.transcripts.ReplacePodcastParts(ctx, t.CityID, t.CouncilMeetingID, parts)
}
