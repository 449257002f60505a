package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// Dispatch-time errors surfaced to callers.
var (
	// ErrAlreadySucceeded is returned when the guard finds a prior succeeded
	// task for the same scope and type. Callers must not retry automatically.
	ErrAlreadySucceeded = errors.New("task already succeeded for this meeting")

	// ErrAlreadyRunning is returned when the guard finds a task of the same
	// scope and type still in flight.
	ErrAlreadyRunning = errors.New("task already running for this meeting")

	// ErrUnsupportedTaskType is returned when no result handler exists for a
	// task type. This is a programming/config error, not a runtime condition.
	ErrUnsupportedTaskType = errors.New("unsupported task type")
)

// WorkerClient dispatches a task payload to the external worker API.
// Implemented by taskapi.Client.
type WorkerClient interface {
	Dispatch(ctx context.Context, taskType domain.TaskType, requestBody json.RawMessage) error
}

// Service is the task lifecycle manager: it owns dispatch, idempotency
// guarding, callback-driven status updates, result-handler dispatch and the
// decision-polling scheduler.
type Service struct {
	db            *sql.DB
	tasks         store.TaskStore
	decisions     store.DecisionStore
	meetings      store.MeetingStore
	subjects      store.SubjectStore
	transcripts   store.TranscriptStore
	notifications store.NotificationStore
	worker        WorkerClient
	emitter       events.Emitter
	logger        *slog.Logger

	// callbackBaseURL is this service's public base URL, embedded into the
	// callback URL handed to the worker.
	callbackBaseURL string

	// now is swappable for tests.
	now func() time.Time

	// processResult applies a task's result; defaults to applyResult and is
	// swappable for tests of the callback handler.
	processResult func(ctx context.Context, t *domain.Task, result json.RawMessage) error

	// runInTx wraps a function in a database transaction; swappable for tests
	// of handlers that write transactionally.
	runInTx func(ctx context.Context, fn store.TxFn) error
}

// ServiceParams collects the dependencies of NewService.
type ServiceParams struct {
	DB              *sql.DB
	Tasks           store.TaskStore
	Decisions       store.DecisionStore
	Meetings        store.MeetingStore
	Subjects        store.SubjectStore
	Transcripts     store.TranscriptStore
	Notifications   store.NotificationStore
	Worker          WorkerClient
	Emitter         events.Emitter
	Logger          *slog.Logger
	CallbackBaseURL string
}

// NewService creates the task lifecycle manager.
func NewService(p ServiceParams) (*Service, error) {
	if p.Tasks == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if p.Worker == nil {
		return nil, fmt.Errorf("worker client is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Service{
		db:              p.DB,
		tasks:           p.Tasks,
		decisions:       p.Decisions,
		meetings:        p.Meetings,
		subjects:        p.Subjects,
		transcripts:     p.Transcripts,
		notifications:   p.Notifications,
		worker:          p.Worker,
		emitter:         p.Emitter,
		logger:          p.Logger.With("component", "task_service"),
		callbackBaseURL: p.CallbackBaseURL,
		now:             func() time.Time { return time.Now().UTC() },
	}
	s.processResult = s.applyResult
	s.runInTx = func(ctx context.Context, fn store.TxFn) error {
		return store.RunInTransaction(ctx, s.db, fn)
	}

	return s, nil
}

// notifyTaskEvent emits a task lifecycle event to the notification sink.
// Delivery is best-effort: failures are logged and never propagate, so a
// broken sink cannot affect stored task state or a caller's dispatch.
func (s *Service) notifyTaskEvent(ctx context.Context, eventType string, t *domain.Task, errText string) {
	if s.emitter == nil {
		return
	}

	event, err := events.NewEvent(eventType, events.TaskEventPayload{
		TaskID:           t.ID,
		TaskType:         string(t.Type),
		CityID:           t.CityID,
		CouncilMeetingID: t.CouncilMeetingID,
		Error:            errText,
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to build task event",
			"event_type", eventType,
			"task_id", t.ID,
			"error", err)
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to emit task event",
			"event_type", eventType,
			"task_id", t.ID,
			"error", err)
	}
}
