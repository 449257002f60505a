package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/store"
)

func TestHandleTranscribeResult(t *testing.T) {
	ctx := context.Background()

	transcript := mustJSON(TranscribeResult{Segments: []TranscriptSegment{
		{
			SpeakerLabel:   "Speaker 1",
			PersonID:       "p-mayor",
			StartTimestamp: 0,
			EndTimestamp:   12.5,
			Utterances: []TranscriptUtterance{
				{Text: "The session is open.", StartTimestamp: 0, EndTimestamp: 3.1},
			},
		},
		{
			SpeakerLabel:   "Speaker 2",
			PersonID:       "p-ghost",
			StartTimestamp: 12.5,
			EndTimestamp:   30,
			Utterances: []TranscriptUtterance{
				{Text: "First item on the agenda.", StartTimestamp: 12.5, EndTimestamp: 16, Uncertain: true},
			},
		},
	}})

	knownPeople := func(f *serviceFixture) {
		f.transcripts.GetPersonFn = func(ctx context.Context, personID string) (*domain.Person, error) {
			if personID == "p-mayor" {
				return &domain.Person{ID: personID, CityID: "athens", Name: "Mayor"}, nil
			}
			return nil, store.ErrPersonNotFound
		}
	}

	t.Run("creates segments and drops unknown person matches", func(t *testing.T) {
		f := newServiceFixture(t)
		knownPeople(f)
		task := makeTask(t, domain.TaskTypeTranscribe, "athens", "m-1")

		require.NoError(t, f.svc.handleTranscribeResult(ctx, task, transcript))

		require.Len(t, f.transcripts.CreatedSegments, 2)
		assert.Equal(t, "p-mayor", f.transcripts.CreatedSegments[0].Tag.PersonID)
		assert.Empty(t, f.transcripts.CreatedSegments[1].Tag.PersonID, "unknown person match must be dropped")
		assert.True(t, f.transcripts.CreatedSegments[1].Utterances[0].Uncertain)

		assert.Zero(t, f.transcripts.DeletedSpeakerData, "no forced rebuild requested")
		assert.Contains(t, f.logs.String(), "unknown person")
	})

	t.Run("force in the request body triggers a rebuild", func(t *testing.T) {
		f := newServiceFixture(t)
		knownPeople(f)
		task := makeTask(t, domain.TaskTypeTranscribe, "athens", "m-1")
		task.RequestBody = json.RawMessage(`{"force":true,"mediaUrl":"https://media.civora.test/m-1.mp4"}`)

		require.NoError(t, f.svc.handleTranscribeResult(ctx, task, transcript))
		assert.Equal(t, 1, f.transcripts.DeletedSpeakerData)
	})
}

func TestHandleFixTranscriptResult(t *testing.T) {
	ctx := context.Background()

	t.Run("missing utterances are tolerated", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeFixTranscript, "athens", "m-1")

		var patched []string
		f.transcripts.UpdateUtteranceFn = func(ctx context.Context, utteranceID, text string, uncertain bool) error {
			if utteranceID == "u-missing" {
				return store.ErrUtteranceNotFound
			}
			patched = append(patched, utteranceID)
			return nil
		}

		result := mustJSON(FixTranscriptResult{UpdatedUtterances: []UtterancePatch{
			{UtteranceID: "u-1", Text: "Corrected text."},
			{UtteranceID: "u-missing", Text: "Never lands."},
			{UtteranceID: "u-2", Text: "Also corrected.", MarkUncertain: true},
		}})

		require.NoError(t, f.svc.handleFixTranscriptResult(ctx, task, result))
		assert.Equal(t, []string{"u-1", "u-2"}, patched)
		assert.Contains(t, f.logs.String(), "missing utterance")
	})
}

func TestHandleSummarizeResult(t *testing.T) {
	ctx := context.Background()

	extraction := func(agendaIndex *int) json.RawMessage {
		return mustJSON(SummarizeResult{Subjects: []SubjectExtraction{{
			Name:            "Harbor rezoning",
			Description:     "Rezoning of the old harbor district",
			AgendaItemIndex: agendaIndex,
			Highlights: []HighlightExtraction{
				{Name: "Heated exchange", UtteranceIDs: []string{"u-4", "u-5"}},
			},
		}}})
	}

	t.Run("replaces subjects and highlights for the meeting", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeSummarize, "athens", "m-1")

		var gotSubjects []*domain.Subject
		var gotHighlights []*domain.Highlight
		f.subjects.ReplaceForMeetingFn = func(ctx context.Context, cityID, meetingID string, subjects []*domain.Subject, highlights []*domain.Highlight) error {
			assert.Equal(t, "athens", cityID)
			assert.Equal(t, "m-1", meetingID)
			gotSubjects, gotHighlights = subjects, highlights
			return nil
		}

		require.NoError(t, f.svc.handleSummarizeResult(ctx, task, extraction(nil), false))

		require.Len(t, gotSubjects, 1)
		assert.Equal(t, "Harbor rezoning", gotSubjects[0].Name)
		require.Len(t, gotHighlights, 1)
		assert.Equal(t, gotSubjects[0].ID, gotHighlights[0].SubjectID)
		assert.Equal(t, []string{"u-4", "u-5"}, gotHighlights[0].UtteranceIDs)

		assert.Empty(t, f.notifications.Created, "summarize never cascades notifications")
	})

	t.Run("agenda result follows the manual notification policy", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeProcessAgenda, "athens", "m-1")
		idx := 1

		f.meetings.GetMeetingFn = func(ctx context.Context, cID, mID string) (*domain.CouncilMeeting, error) {
			return &domain.CouncilMeeting{ID: mID, CityID: cID, Date: time.Now(), AdministrativeBodyID: "council"}, nil
		}
		f.meetings.GetAdministrativeBodyFn = func(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error) {
			return &domain.AdministrativeBody{ID: bodyID, NotificationPolicy: domain.NotificationPolicyManual}, nil
		}

		require.NoError(t, f.svc.handleSummarizeResult(ctx, task, extraction(&idx), true))

		require.Len(t, f.notifications.Created, 1)
		created := f.notifications.Created[0]
		assert.Equal(t, "athens", created.CityID)
		assert.Len(t, created.SubjectIDs, 1)
		assert.Empty(t, f.notifications.Sent, "manual policy must not auto-send")

		require.Len(t, f.emitter.Events, 1)
		assert.Equal(t, events.TypeMeetingNotificationCreated, f.emitter.Events[0].Type)
	})

	t.Run("agenda result auto-sends under the autoSend policy", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeProcessAgenda, "athens", "m-1")
		idx := 1

		f.meetings.GetMeetingFn = func(ctx context.Context, cID, mID string) (*domain.CouncilMeeting, error) {
			return &domain.CouncilMeeting{ID: mID, CityID: cID, Date: time.Now(), AdministrativeBodyID: "council"}, nil
		}
		f.meetings.GetAdministrativeBodyFn = func(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error) {
			return &domain.AdministrativeBody{ID: bodyID, NotificationPolicy: domain.NotificationPolicyAutoSend}, nil
		}

		require.NoError(t, f.svc.handleSummarizeResult(ctx, task, extraction(&idx), true))

		require.Len(t, f.notifications.Created, 1)
		require.Len(t, f.notifications.Sent, 1)
		assert.Equal(t, f.notifications.Created[0].ID, f.notifications.Sent[0])

		require.Len(t, f.emitter.Events, 2)
		assert.Equal(t, events.TypeMeetingNotificationCreated, f.emitter.Events[0].Type)
		assert.Equal(t, events.TypeMeetingNotificationSent, f.emitter.Events[1].Type)
	})

	t.Run("agenda result skips the cascade without a body", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeProcessAgenda, "athens", "m-1")
		idx := 1

		f.meetings.GetMeetingFn = func(ctx context.Context, cID, mID string) (*domain.CouncilMeeting, error) {
			return &domain.CouncilMeeting{ID: mID, CityID: cID, Date: time.Now()}, nil
		}

		require.NoError(t, f.svc.handleSummarizeResult(ctx, task, extraction(&idx), true))
		assert.Empty(t, f.notifications.Created)
	})
}

func TestHandlePodcastAndMediaResults(t *testing.T) {
	ctx := context.Background()

	t.Run("podcast spec replaces the meeting's parts", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeGeneratePodcastSpec, "athens", "m-1")

		var gotParts []*domain.PodcastPart
		f.transcripts.ReplacePodcastPartsFn = func(ctx context.Context, cityID, meetingID string, parts []*domain.PodcastPart) error {
			gotParts = parts
			return nil
		}

		result := mustJSON(PodcastSpecResult{Parts: []PodcastPartSpec{
			{Index: 0, Text: "Welcome to the council digest."},
			{Index: 1, Text: "The harbor rezoning debate."},
		}})

		require.NoError(t, f.svc.handlePodcastSpecResult(ctx, task, result))
		require.Len(t, gotParts, 2)
		assert.Equal(t, "m-1-part-0", gotParts[0].ID)
		assert.Equal(t, 1, gotParts[1].Index)
	})

	t.Run("split media attaches audio to each part", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeSplitMediaFile, "athens", "m-1")

		attached := map[string]string{}
		f.transcripts.AttachPodcastAudioFn = func(ctx context.Context, partID, audioURL string, duration float64) error {
			attached[partID] = audioURL
			return nil
		}

		result := mustJSON(SplitMediaFileResult{Segments: []MediaSegment{
			{PartID: "m-1-part-0", AudioURL: "https://cdn.civora.test/p0.mp3", Duration: 64.2},
			{PartID: "m-1-part-1", AudioURL: "https://cdn.civora.test/p1.mp3", Duration: 131.9},
		}})

		require.NoError(t, f.svc.handleSplitMediaFileResult(ctx, task, result))
		assert.Len(t, attached, 2)
		assert.Equal(t, "https://cdn.civora.test/p0.mp3", attached["m-1-part-0"])
	})
}

func TestHandleVoiceprintResult(t *testing.T) {
	ctx := context.Background()

	t.Run("saves the embedding for a known person", func(t *testing.T) {
		f := newServiceFixture(t)
		f.at(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
		task := makeTask(t, domain.TaskTypeGenerateVoiceprint, "athens", "m-1")

		f.transcripts.GetPersonFn = func(ctx context.Context, personID string) (*domain.Person, error) {
			return &domain.Person{ID: personID, CityID: "athens", Name: "Mayor"}, nil
		}
		var saved *domain.Voiceprint
		f.transcripts.SaveVoiceprintFn = func(ctx context.Context, vp *domain.Voiceprint) error {
			saved = vp
			return nil
		}

		result := mustJSON(GenerateVoiceprintResult{
			PersonID:        "p-mayor",
			SourceSegmentID: "seg-3",
			Embedding:       []float64{0.12, -0.4, 0.77},
		})

		require.NoError(t, f.svc.handleVoiceprintResult(ctx, task, result))
		require.NotNil(t, saved)
		assert.Equal(t, "p-mayor", saved.PersonID)
		assert.Equal(t, "seg-3", saved.SourceSegmentID)
		assert.Len(t, saved.Embedding, 3)
	})

	t.Run("unknown person fails the handler", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeGenerateVoiceprint, "athens", "m-1")

		result := mustJSON(GenerateVoiceprintResult{PersonID: "p-ghost", SourceSegmentID: "seg-1"})
		err := f.svc.handleVoiceprintResult(ctx, task, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrPersonNotFound)
	})
}

func TestApplyResultRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("human review has no side effect", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeHumanReview, "athens", "m-1")

		require.NoError(t, f.svc.applyResult(ctx, task, json.RawMessage(`{"approved":true}`)))
	})

	t.Run("unknown type fails loudly", func(t *testing.T) {
		f := newServiceFixture(t)
		task := makeTask(t, domain.TaskTypeHumanReview, "athens", "m-1")
		task.Type = "compressVideo"

		err := f.svc.applyResult(ctx, task, json.RawMessage(`{}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedTaskType)
	})
}
