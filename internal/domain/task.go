package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the persisted state of a task attempt.
type TaskStatus string

// Possible task status values. A task moves from pending to exactly one of
// succeeded or failed; progress callbacks update stage/percent while the
// status stays pending.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskType identifies the kind of work a task dispatches to the worker API.
type TaskType string

// All task types known to the pipeline.
const (
	TaskTypeTranscribe          TaskType = "transcribe"
	TaskTypeSummarize           TaskType = "summarize"
	TaskTypeFixTranscript       TaskType = "fixTranscript"
	TaskTypeProcessAgenda       TaskType = "processAgenda"
	TaskTypeGeneratePodcastSpec TaskType = "generatePodcastSpec"
	TaskTypeSplitMediaFile      TaskType = "splitMediaFile"
	TaskTypeGenerateVoiceprint  TaskType = "generateVoiceprint"
	TaskTypeSyncElasticsearch   TaskType = "syncElasticsearch"
	TaskTypeGenerateHighlight   TaskType = "generateHighlight"
	TaskTypePollDecisions       TaskType = "pollDecisions"
	TaskTypeHumanReview         TaskType = "humanReview"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskCity    = errors.New("task city ID cannot be empty")
	ErrEmptyTaskMeeting = errors.New("task council meeting ID cannot be empty")
	ErrInvalidTaskType  = errors.New("invalid task type")
	ErrInvalidTaskState = errors.New("invalid task status")
)

// Task is one attempt to run a long-lived external job, tracked end-to-end.
// Tasks are permanent audit history and are never deleted by this subsystem.
type Task struct {
	ID               uuid.UUID       `json:"id"`
	Type             TaskType        `json:"type"`
	Status           TaskStatus      `json:"status"`
	CityID           string          `json:"city_id"`
	CouncilMeetingID string          `json:"council_meeting_id"`
	RequestBody      json.RawMessage `json:"request_body,omitempty"`
	ResponseBody     json.RawMessage `json:"response_body,omitempty"`
	Stage            string          `json:"stage,omitempty"`
	PercentComplete  *int            `json:"percent_complete,omitempty"`
	Version          *int            `json:"version,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewTask creates a pending Task scoped to one meeting within one city.
// Returns an error if validation fails.
func NewTask(taskType TaskType, cityID, meetingID string, requestBody json.RawMessage) (*Task, error) {
	t := &Task{
		ID:               uuid.New(),
		Type:             taskType,
		Status:           TaskStatusPending,
		CityID:           cityID,
		CouncilMeetingID: meetingID,
		RequestBody:      requestBody,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.CityID == "" {
		return ErrEmptyTaskCity
	}

	if t.CouncilMeetingID == "" {
		return ErrEmptyTaskMeeting
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskState
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusSucceeded || t.Status == TaskStatusFailed
}

// IsValidTaskType checks if the given type is one of the known task types.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeTranscribe, TaskTypeSummarize, TaskTypeFixTranscript,
		TaskTypeProcessAgenda, TaskTypeGeneratePodcastSpec, TaskTypeSplitMediaFile,
		TaskTypeGenerateVoiceprint, TaskTypeSyncElasticsearch, TaskTypeGenerateHighlight,
		TaskTypePollDecisions, TaskTypeHumanReview:
		return true
	default:
		return false
	}
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}
