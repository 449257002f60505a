package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/store"
)

// mockTaskStore implements store.TaskStore with function fields for
// customizable behavior. Unset lookups report ErrTaskNotFound; unset writes
// succeed and record the task.
type mockTaskStore struct {
	CreateFn                  func(ctx context.Context, t *domain.Task) error
	UpdateFn                  func(ctx context.Context, t *domain.Task) error
	GetByIDFn                 func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	FindNewestSucceededFn     func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error)
	FindRunningFn             func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error)
	FindPendingCreatedAfterFn func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string, after time.Time) (*domain.Task, error)
	ListByScopeFn             func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) ([]*domain.Task, error)
	PollWindowFn              func(ctx context.Context, cityID, meetingID string) (*store.PollWindow, error)
	PollStatsByCityFn         func(ctx context.Context) ([]store.CityPollStats, error)

	Created []*domain.Task
	Updated []*domain.Task

	// Call counters for guard-query assertions
	FindNewestSucceededCalls int
	FindRunningCalls         int
}

func (m *mockTaskStore) Create(ctx context.Context, t *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	m.Created = append(m.Created, t)
	return nil
}

func (m *mockTaskStore) Update(ctx context.Context, t *domain.Task) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, t)
	}
	snapshot := *t
	m.Updated = append(m.Updated, &snapshot)
	return nil
}

func (m *mockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) FindNewestSucceeded(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
	m.FindNewestSucceededCalls++
	if m.FindNewestSucceededFn != nil {
		return m.FindNewestSucceededFn(ctx, taskType, cityID, meetingID)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) FindRunning(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
	m.FindRunningCalls++
	if m.FindRunningFn != nil {
		return m.FindRunningFn(ctx, taskType, cityID, meetingID)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) FindPendingCreatedAfter(ctx context.Context, taskType domain.TaskType, cityID, meetingID string, after time.Time) (*domain.Task, error) {
	if m.FindPendingCreatedAfterFn != nil {
		return m.FindPendingCreatedAfterFn(ctx, taskType, cityID, meetingID, after)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) ListByScope(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) ([]*domain.Task, error) {
	if m.ListByScopeFn != nil {
		return m.ListByScopeFn(ctx, taskType, cityID, meetingID)
	}
	return nil, nil
}

func (m *mockTaskStore) PollWindow(ctx context.Context, cityID, meetingID string) (*store.PollWindow, error) {
	if m.PollWindowFn != nil {
		return m.PollWindowFn(ctx, cityID, meetingID)
	}
	return &store.PollWindow{}, nil
}

func (m *mockTaskStore) PollStatsByCity(ctx context.Context) ([]store.CityPollStats, error) {
	if m.PollStatsByCityFn != nil {
		return m.PollStatsByCityFn(ctx)
	}
	return nil, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// mockDecisionStore implements store.DecisionStore.
type mockDecisionStore struct {
	UpsertBySubjectFn func(ctx context.Context, d *domain.Decision) error
	GetBySubjectFn    func(ctx context.Context, subjectID string) (*domain.Decision, error)
	CountForMeetingFn func(ctx context.Context, cityID, meetingID string) (int, error)

	Upserted []*domain.Decision
}

func (m *mockDecisionStore) UpsertBySubject(ctx context.Context, d *domain.Decision) error {
	if m.UpsertBySubjectFn != nil {
		return m.UpsertBySubjectFn(ctx, d)
	}
	m.Upserted = append(m.Upserted, d)
	return nil
}

func (m *mockDecisionStore) GetBySubject(ctx context.Context, subjectID string) (*domain.Decision, error) {
	if m.GetBySubjectFn != nil {
		return m.GetBySubjectFn(ctx, subjectID)
	}
	return nil, store.ErrNotFound
}

func (m *mockDecisionStore) CountForMeeting(ctx context.Context, cityID, meetingID string) (int, error) {
	if m.CountForMeetingFn != nil {
		return m.CountForMeetingFn(ctx, cityID, meetingID)
	}
	return 0, nil
}

func (m *mockDecisionStore) WithTx(tx *sql.Tx) store.DecisionStore { return m }

// mockMeetingStore implements store.MeetingStore.
type mockMeetingStore struct {
	GetCityFn               func(ctx context.Context, cityID string) (*domain.City, error)
	GetMeetingFn            func(ctx context.Context, cityID, meetingID string) (*domain.CouncilMeeting, error)
	GetAdministrativeBodyFn func(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error)
	ListPollCandidatesFn    func(ctx context.Context, since time.Time, limit int) ([]store.PollCandidate, error)
}

func (m *mockMeetingStore) GetCity(ctx context.Context, cityID string) (*domain.City, error) {
	if m.GetCityFn != nil {
		return m.GetCityFn(ctx, cityID)
	}
	return nil, store.ErrCityNotFound
}

func (m *mockMeetingStore) GetMeeting(ctx context.Context, cityID, meetingID string) (*domain.CouncilMeeting, error) {
	if m.GetMeetingFn != nil {
		return m.GetMeetingFn(ctx, cityID, meetingID)
	}
	return nil, store.ErrMeetingNotFound
}

func (m *mockMeetingStore) GetAdministrativeBody(ctx context.Context, bodyID string) (*domain.AdministrativeBody, error) {
	if m.GetAdministrativeBodyFn != nil {
		return m.GetAdministrativeBodyFn(ctx, bodyID)
	}
	return nil, store.ErrBodyNotFound
}

func (m *mockMeetingStore) ListPollCandidates(ctx context.Context, since time.Time, limit int) ([]store.PollCandidate, error) {
	if m.ListPollCandidatesFn != nil {
		return m.ListPollCandidatesFn(ctx, since, limit)
	}
	return nil, nil
}

// mockSubjectStore implements store.SubjectStore and store.NotificationStore.
type mockSubjectStore struct {
	GetByIDFn              func(ctx context.Context, subjectID string) (*domain.Subject, error)
	ListUnlinkedEligibleFn func(ctx context.Context, cityID, meetingID string) ([]*domain.Subject, error)
	ReplaceForMeetingFn    func(ctx context.Context, cityID, meetingID string, subjects []*domain.Subject, highlights []*domain.Highlight) error
	LinkDecisionFn         func(ctx context.Context, subjectID string, decisionID uuid.UUID) error

	Linked map[string]uuid.UUID
}

func (m *mockSubjectStore) GetByID(ctx context.Context, subjectID string) (*domain.Subject, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, subjectID)
	}
	return nil, store.ErrSubjectNotFound
}

func (m *mockSubjectStore) ListUnlinkedEligible(ctx context.Context, cityID, meetingID string) ([]*domain.Subject, error) {
	if m.ListUnlinkedEligibleFn != nil {
		return m.ListUnlinkedEligibleFn(ctx, cityID, meetingID)
	}
	return nil, nil
}

func (m *mockSubjectStore) ReplaceForMeeting(ctx context.Context, cityID, meetingID string, subjects []*domain.Subject, highlights []*domain.Highlight) error {
	if m.ReplaceForMeetingFn != nil {
		return m.ReplaceForMeetingFn(ctx, cityID, meetingID, subjects, highlights)
	}
	return nil
}

func (m *mockSubjectStore) LinkDecision(ctx context.Context, subjectID string, decisionID uuid.UUID) error {
	if m.LinkDecisionFn != nil {
		return m.LinkDecisionFn(ctx, subjectID, decisionID)
	}
	if m.Linked == nil {
		m.Linked = make(map[string]uuid.UUID)
	}
	m.Linked[subjectID] = decisionID
	return nil
}

func (m *mockSubjectStore) WithTx(tx *sql.Tx) store.SubjectStore { return m }

// mockNotificationStore implements store.NotificationStore.
type mockNotificationStore struct {
	CreateFn   func(ctx context.Context, n *domain.MeetingNotification) error
	MarkSentFn func(ctx context.Context, id uuid.UUID) error

	Created []*domain.MeetingNotification
	Sent    []uuid.UUID
}

func (m *mockNotificationStore) Create(ctx context.Context, n *domain.MeetingNotification) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, n)
	}
	m.Created = append(m.Created, n)
	return nil
}

func (m *mockNotificationStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	if m.MarkSentFn != nil {
		return m.MarkSentFn(ctx, id)
	}
	m.Sent = append(m.Sent, id)
	return nil
}

// mockTranscriptStore implements store.TranscriptStore.
type mockTranscriptStore struct {
	GetPersonFn           func(ctx context.Context, personID string) (*domain.Person, error)
	DeleteSpeakerDataFn   func(ctx context.Context, cityID, meetingID string) error
	CreateSegmentsFn      func(ctx context.Context, cityID, meetingID string, segments []store.SegmentWithUtterances) error
	UpdateUtteranceFn     func(ctx context.Context, utteranceID, text string, uncertain bool) error
	ReplacePodcastPartsFn func(ctx context.Context, cityID, meetingID string, parts []*domain.PodcastPart) error
	AttachPodcastAudioFn  func(ctx context.Context, partID, audioURL string, duration float64) error
	SetHighlightVideoFn   func(ctx context.Context, highlightID, videoURL string) error
	SaveVoiceprintFn      func(ctx context.Context, vp *domain.Voiceprint) error

	DeletedSpeakerData int
	CreatedSegments    []store.SegmentWithUtterances
}

func (m *mockTranscriptStore) GetPerson(ctx context.Context, personID string) (*domain.Person, error) {
	if m.GetPersonFn != nil {
		return m.GetPersonFn(ctx, personID)
	}
	return nil, store.ErrPersonNotFound
}

func (m *mockTranscriptStore) DeleteSpeakerData(ctx context.Context, cityID, meetingID string) error {
	if m.DeleteSpeakerDataFn != nil {
		return m.DeleteSpeakerDataFn(ctx, cityID, meetingID)
	}
	m.DeletedSpeakerData++
	return nil
}

func (m *mockTranscriptStore) CreateSegments(ctx context.Context, cityID, meetingID string, segments []store.SegmentWithUtterances) error {
	if m.CreateSegmentsFn != nil {
		return m.CreateSegmentsFn(ctx, cityID, meetingID, segments)
	}
	m.CreatedSegments = append(m.CreatedSegments, segments...)
	return nil
}

func (m *mockTranscriptStore) UpdateUtterance(ctx context.Context, utteranceID, text string, uncertain bool) error {
	if m.UpdateUtteranceFn != nil {
		return m.UpdateUtteranceFn(ctx, utteranceID, text, uncertain)
	}
	return nil
}

func (m *mockTranscriptStore) ReplacePodcastParts(ctx context.Context, cityID, meetingID string, parts []*domain.PodcastPart) error {
	if m.ReplacePodcastPartsFn != nil {
		return m.ReplacePodcastPartsFn(ctx, cityID, meetingID, parts)
	}
	return nil
}

func (m *mockTranscriptStore) AttachPodcastAudio(ctx context.Context, partID, audioURL string, duration float64) error {
	if m.AttachPodcastAudioFn != nil {
		return m.AttachPodcastAudioFn(ctx, partID, audioURL, duration)
	}
	return nil
}

func (m *mockTranscriptStore) SetHighlightVideo(ctx context.Context, highlightID, videoURL string) error {
	if m.SetHighlightVideoFn != nil {
		return m.SetHighlightVideoFn(ctx, highlightID, videoURL)
	}
	return nil
}

func (m *mockTranscriptStore) SaveVoiceprint(ctx context.Context, vp *domain.Voiceprint) error {
	if m.SaveVoiceprintFn != nil {
		return m.SaveVoiceprintFn(ctx, vp)
	}
	return nil
}

func (m *mockTranscriptStore) WithTx(tx *sql.Tx) store.TranscriptStore { return m }

// mockWorkerClient implements WorkerClient.
type mockWorkerClient struct {
	DispatchFn func(ctx context.Context, taskType domain.TaskType, requestBody json.RawMessage) error

	Dispatched []dispatchedCall
}

type dispatchedCall struct {
	Type domain.TaskType
	Body json.RawMessage
}

func (m *mockWorkerClient) Dispatch(ctx context.Context, taskType domain.TaskType, requestBody json.RawMessage) error {
	m.Dispatched = append(m.Dispatched, dispatchedCall{Type: taskType, Body: requestBody})
	if m.DispatchFn != nil {
		return m.DispatchFn(ctx, taskType, requestBody)
	}
	return nil
}

// mockEmitter implements events.Emitter and records emitted events.
type mockEmitter struct {
	EmitEventFn func(ctx context.Context, event *events.Event) error

	Events []*events.Event
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	m.Events = append(m.Events, event)
	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	return nil
}
