// Package events carries the fire-and-forget notification events the task
// pipeline emits: task lifecycle changes and meeting-notification activity.
// Delivery is best-effort; emitting never affects task state.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task pipeline.
const (
	TypeTaskStarted                = "task.started"
	TypeTaskCompleted              = "task.completed"
	TypeTaskFailed                 = "task.failed"
	TypeMeetingNotificationCreated = "meeting_notification.created"
	TypeMeetingNotificationSent    = "meeting_notification.sent"
)

// Event is one notification published to the sink. Payload is event-type
// specific JSON.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates an Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TaskEventPayload is the payload shape for task lifecycle events.
type TaskEventPayload struct {
	TaskID           uuid.UUID `json:"task_id"`
	TaskType         string    `json:"task_type"`
	CityID           string    `json:"city_id"`
	CouncilMeetingID string    `json:"council_meeting_id"`
	Error            string    `json:"error,omitempty"`
}

// MeetingNotificationPayload is the payload shape for meeting-notification events.
type MeetingNotificationPayload struct {
	NotificationID   uuid.UUID `json:"notification_id"`
	CityID           string    `json:"city_id"`
	CouncilMeetingID string    `json:"council_meeting_id"`
	SubjectCount     int       `json:"subject_count"`
}

// Handler defines an interface for components that can handle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// Emitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
