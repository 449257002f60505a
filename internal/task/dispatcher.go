package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/platform/logger"
)

// StartTask creates a task record, dispatches it to the external worker with
// a callback URL, and returns the created task.
//
// For guarded task types the idempotency guard runs first; a blocked dispatch
// fails without creating any record. Dispatch failures mark the task failed
// and are re-thrown to the caller with the worker's status/body context; the
// record remains as failure evidence.
func (s *Service) StartTask(
	ctx context.Context,
	taskType domain.TaskType,
	requestBody interface{},
	cityID, meetingID string,
	opts StartOptions,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"task_type", taskType,
		"city_id", cityID,
		"council_meeting_id", meetingID,
	)

	if IsGuardedType(taskType) {
		check, err := s.CheckTaskIdempotency(ctx, taskType, cityID, meetingID, opts)
		if err != nil {
			return nil, err
		}
		if !check.Proceed {
			log.Info("dispatch blocked by idempotency guard",
				"blocked_reason", check.BlockedReason,
				"existing_task_id", check.ExistingTask.ID)
			switch check.BlockedReason {
			case BlockedAlreadySucceeded:
				return nil, fmt.Errorf("%w: task %s", ErrAlreadySucceeded, check.ExistingTask.ID)
			default:
				return nil, fmt.Errorf("%w: task %s", ErrAlreadyRunning, check.ExistingTask.ID)
			}
		}
	}

	if !opts.Force {
		// Legacy duplicate check, kept inert on purpose: the lookup result is
		// logged but never blocks. Do not turn this into a second guard.
		if running, err := s.tasks.FindRunning(ctx, taskType, cityID, meetingID); err == nil && running != nil {
			log.Debug("legacy duplicate check found running task (no-op)",
				"existing_task_id", running.ID)
		}
	}

	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request body: %w", err)
	}

	t, err := domain.NewTask(taskType, cityID, meetingID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build task: %w", err)
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task record: %w", err)
	}

	mergedBody, err := s.mergeCallbackURL(body, t)
	if err != nil {
		// The request body was just marshaled above; failing to re-parse it
		// means the payload was not a JSON object.
		return nil, s.failDispatch(ctx, t, fmt.Errorf("failed to embed callback URL: %w", err))
	}

	if err := s.worker.Dispatch(ctx, taskType, mergedBody); err != nil {
		return nil, s.failDispatch(ctx, t, err)
	}

	// Persist the full request body (with callback URL) back onto the record.
	// The request body is never mutated again after this point.
	t.RequestBody = mergedBody
	if err := s.tasks.Update(ctx, t); err != nil {
		log.Error("failed to persist dispatched request body", "task_id", t.ID, "error", err)
	}

	tasksDispatched.WithLabelValues(string(taskType)).Inc()
	log.Info("task dispatched", "task_id", t.ID)

	s.notifyTaskEvent(ctx, events.TypeTaskStarted, t, "")

	return t, nil
}

// failDispatch marks the task failed with the dispatch error and returns an
// error carrying the worker's context for the original caller.
func (s *Service) failDispatch(ctx context.Context, t *domain.Task, dispatchErr error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	t.Status = domain.TaskStatusFailed
	t.ResponseBody = mustJSON(map[string]string{"error": dispatchErr.Error()})
	if err := s.tasks.Update(ctx, t); err != nil {
		log.Error("failed to mark task failed after dispatch error",
			"task_id", t.ID,
			"update_error", err,
			"dispatch_error", dispatchErr)
	}

	tasksFailed.WithLabelValues(string(t.Type)).Inc()
	log.Error("task dispatch failed", "task_id", t.ID, "error", dispatchErr)

	return fmt.Errorf("failed to dispatch %s task: %w", t.Type, dispatchErr)
}

// mergeCallbackURL adds the callback URL for the task into its JSON request
// body. The body must be a JSON object.
func (s *Service) mergeCallbackURL(body json.RawMessage, t *domain.Task) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}

	callbackURL := fmt.Sprintf(
		"%s/api/tasks/%s/callback?cityId=%s&meetingId=%s",
		s.callbackBaseURL, t.ID, t.CityID, t.CouncilMeetingID,
	)
	fields["callbackUrl"] = mustJSON(callbackURL)

	return json.Marshal(fields)
}

// mustJSON marshals values that cannot fail (strings, string maps).
func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// ALLOW-PANIC: Marshaling a plain string/map cannot fail
		panic(err)
	}
	return b
}

