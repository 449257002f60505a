package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// HandleTaskUpdate consumes one asynchronous status update from the worker.
//
// A processing update refreshes stage/percent while the status stays pending.
// A success update persists the result and runs the task's result handler; if
// the handler fails, the task transitions to failed even though the worker
// reported success (the terminal state reflects business-logic success, not
// just transport success). An error update persists the failure detail.
//
// Updates for unknown task IDs are logged and swallowed: the worker may retry
// callbacks for tasks that no longer exist and that must not crash the
// ingestion path.
func (s *Service) HandleTaskUpdate(ctx context.Context, taskID uuid.UUID, update Update) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("task_id", taskID, "update_status", update.Status)

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("received update for unknown task, ignoring")
			return nil
		}
		return fmt.Errorf("failed to load task for update: %w", err)
	}

	switch update.Status {
	case UpdateStatusProcessing:
		return s.handleProcessingUpdate(ctx, t, update)
	case UpdateStatusSuccess:
		return s.handleSuccessUpdate(ctx, t, update)
	case UpdateStatusError:
		return s.handleErrorUpdate(ctx, t, update)
	default:
		return fmt.Errorf("unknown update status %q for task %s", update.Status, taskID)
	}
}

func (s *Service) handleProcessingUpdate(ctx context.Context, t *domain.Task, update Update) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// The worker may deliver a stale progress callback after the task already
	// reached a final state. Persisting it would resurrect a settled task.
	if t.IsTerminal() {
		log.Warn("ignoring progress update for terminal task",
			"task_id", t.ID,
			"status", t.Status)
		return nil
	}

	t.Stage = update.Stage
	if update.ProgressPercent != nil {
		t.PercentComplete = update.ProgressPercent
	}
	if update.Version != nil {
		t.Version = update.Version
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist progress update: %w", err)
	}

	log.Debug("task progress updated",
		"task_id", t.ID,
		"stage", t.Stage,
		"percent_complete", t.PercentComplete)
	return nil
}

func (s *Service) handleSuccessUpdate(ctx context.Context, t *domain.Task, update Update) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	t.Status = domain.TaskStatusSucceeded
	t.ResponseBody = update.Result
	if update.Version != nil {
		t.Version = update.Version
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist success update: %w", err)
	}

	if len(update.Result) > 0 {
		if procErr := s.processResult(ctx, t, update.Result); procErr != nil {
			// Compensating transition: applying the result failed, so the
			// task is failed regardless of what the worker reported. The
			// worker result and the processing error are both kept for
			// inspection.
			log.Error("result processing failed, marking task failed",
				"task_id", t.ID,
				"task_type", t.Type,
				"error", procErr)

			t.Status = domain.TaskStatusFailed
			envelope, err := marshalEnvelope(update, procErr)
			if err == nil {
				t.ResponseBody = envelope
			}
			if err := s.tasks.Update(ctx, t); err != nil {
				return fmt.Errorf("failed to persist compensating failure: %w", err)
			}

			tasksFailed.WithLabelValues(string(t.Type)).Inc()
			s.notifyTaskEvent(ctx, events.TypeTaskFailed, t, procErr.Error())
			return nil
		}
	}

	tasksSucceeded.WithLabelValues(string(t.Type)).Inc()
	log.Info("task succeeded", "task_id", t.ID, "task_type", t.Type)
	s.notifyTaskEvent(ctx, events.TypeTaskCompleted, t, "")
	return nil
}

func (s *Service) handleErrorUpdate(ctx context.Context, t *domain.Task, update Update) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	t.Status = domain.TaskStatusFailed
	t.ResponseBody = mustJSON(map[string]string{"error": update.Error})
	if update.Version != nil {
		t.Version = update.Version
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist error update: %w", err)
	}

	tasksFailed.WithLabelValues(string(t.Type)).Inc()
	log.Warn("task failed on worker", "task_id", t.ID, "task_type", t.Type, "worker_error", update.Error)
	s.notifyTaskEvent(ctx, events.TypeTaskFailed, t, update.Error)
	return nil
}

// ProcessTaskResponse re-reads the persisted response body for a task and
// replays the appropriate result handler. Used for reprocessing/backfill
// after a handler bug is fixed. Fails loudly for types without a handler.
//
// Persisted bodies are not always raw worker results: a compensated failure
// stores a {result, processingError} envelope and a worker-error update
// stores {"error": ...}. The envelope is unwrapped back to the worker result
// before replay; a failure body with no worker result refuses to replay,
// because feeding it to a handler would apply an empty result (and for
// subject extraction, wipe the meeting's subjects).
func (s *Service) ProcessTaskResponse(ctx context.Context, taskType domain.TaskType, taskID uuid.UUID) error {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if t.Type != taskType {
		return fmt.Errorf("task %s has type %q, not %q", taskID, t.Type, taskType)
	}

	result, err := workerResultFromBody(t.ResponseBody)
	if err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}

	return s.applyResult(ctx, t, result)
}

// workerResultFromBody extracts the replayable worker result from a persisted
// response body, unwrapping the compensated-failure envelope and rejecting
// bodies that carry only a failure detail.
func workerResultFromBody(body json.RawMessage) (json.RawMessage, error) {
	if len(body) == 0 {
		return nil, errors.New("no response body to process")
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.ProcessingError != "" {
		if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
			return nil, errors.New("compensated failure carries no worker result")
		}
		return envelope.Result, nil
	}

	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && failure.Error != "" {
		return nil, fmt.Errorf("response body is a failure detail, not a worker result: %q", failure.Error)
	}

	return body, nil
}

func marshalEnvelope(update Update, procErr error) ([]byte, error) {
	env := responseEnvelope{
		Result:          update.Result,
		ProcessingError: procErr.Error(),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return b, nil
}
