package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/events"
)

func TestStartTask(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches and persists a guarded task", func(t *testing.T) {
		f := newServiceFixture(t)

		created, err := f.svc.StartTask(
			ctx,
			domain.TaskTypeTranscribe,
			map[string]string{"mediaUrl": "https://media.civora.test/m-1.mp4"},
			"athens", "m-1",
			StartOptions{},
		)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusPending, created.Status)
		assert.Equal(t, "athens", created.CityID)
		assert.Equal(t, "m-1", created.CouncilMeetingID)

		require.Len(t, f.tasks.Created, 1)
		require.Len(t, f.worker.Dispatched, 1)
		assert.Equal(t, domain.TaskTypeTranscribe, f.worker.Dispatched[0].Type)

		// The dispatched body must carry the original fields plus callbackUrl.
		var body map[string]string
		require.NoError(t, json.Unmarshal(f.worker.Dispatched[0].Body, &body))
		assert.Equal(t, "https://media.civora.test/m-1.mp4", body["mediaUrl"])
		assert.Equal(t,
			"https://api.civora.test/api/tasks/"+created.ID.String()+"/callback?cityId=athens&meetingId=m-1",
			body["callbackUrl"])

		// The merged body is persisted back onto the record.
		require.Len(t, f.tasks.Updated, 1)
		assert.JSONEq(t, string(f.worker.Dispatched[0].Body), string(f.tasks.Updated[0].RequestBody))

		require.Len(t, f.emitter.Events, 1)
		assert.Equal(t, events.TypeTaskStarted, f.emitter.Events[0].Type)
	})

	t.Run("guard blocks succeeded scope without creating a record", func(t *testing.T) {
		f := newServiceFixture(t)
		prior := makeTask(t, domain.TaskTypeSummarize, "athens", "m-1")
		prior.Status = domain.TaskStatusSucceeded
		f.tasks.FindNewestSucceededFn = func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
			return prior, nil
		}

		_, err := f.svc.StartTask(ctx, domain.TaskTypeSummarize, map[string]string{}, "athens", "m-1", StartOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadySucceeded)
		assert.Empty(t, f.tasks.Created)
		assert.Empty(t, f.worker.Dispatched)
	})

	t.Run("guard blocks running scope", func(t *testing.T) {
		f := newServiceFixture(t)
		prior := makeTask(t, domain.TaskTypeSummarize, "athens", "m-1")
		f.tasks.FindRunningFn = func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
			return prior, nil
		}

		_, err := f.svc.StartTask(ctx, domain.TaskTypeSummarize, map[string]string{}, "athens", "m-1", StartOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyRunning)
		assert.Empty(t, f.tasks.Created)
	})

	t.Run("unguarded type dispatches despite a running duplicate", func(t *testing.T) {
		f := newServiceFixture(t)
		prior := makeTask(t, domain.TaskTypeGenerateHighlight, "athens", "m-1")
		f.tasks.FindRunningFn = func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
			return prior, nil
		}

		created, err := f.svc.StartTask(
			ctx, domain.TaskTypeGenerateHighlight,
			map[string]string{"highlightId": "hl-1"},
			"athens", "m-1", StartOptions{})
		require.NoError(t, err)

		assert.NotEqual(t, prior.ID, created.ID)
		assert.Len(t, f.worker.Dispatched, 1)
		assert.Zero(t, f.tasks.FindNewestSucceededCalls, "unguarded types never query the guard")
	})

	t.Run("force bypasses the guard for guarded types", func(t *testing.T) {
		f := newServiceFixture(t)
		prior := makeTask(t, domain.TaskTypeTranscribe, "athens", "m-1")
		prior.Status = domain.TaskStatusSucceeded
		f.tasks.FindNewestSucceededFn = func(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
			return prior, nil
		}

		_, err := f.svc.StartTask(
			ctx, domain.TaskTypeTranscribe,
			map[string]string{"force": "true"},
			"athens", "m-1", StartOptions{Force: true})
		require.NoError(t, err)
		assert.Len(t, f.worker.Dispatched, 1)
	})

	t.Run("dispatch failure marks task failed and keeps the record", func(t *testing.T) {
		f := newServiceFixture(t)
		f.worker.DispatchFn = func(ctx context.Context, taskType domain.TaskType, requestBody json.RawMessage) error {
			return errors.New("worker returned status 503")
		}

		_, err := f.svc.StartTask(ctx, domain.TaskTypeTranscribe, map[string]string{}, "athens", "m-1", StartOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker returned status 503")

		require.Len(t, f.tasks.Created, 1)
		require.Len(t, f.tasks.Updated, 1)
		failed := f.tasks.Updated[0]
		assert.Equal(t, domain.TaskStatusFailed, failed.Status)

		var detail map[string]string
		require.NoError(t, json.Unmarshal(failed.ResponseBody, &detail))
		assert.Contains(t, detail["error"], "worker returned status 503")
	})

	t.Run("non-object request body fails before dispatch", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.StartTask(ctx, domain.TaskTypeTranscribe, "just-a-string", "athens", "m-1", StartOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "callback URL")
		assert.Empty(t, f.worker.Dispatched)
	})

	t.Run("event emission failure does not fail the dispatch", func(t *testing.T) {
		f := newServiceFixture(t)
		f.emitter.EmitEventFn = func(ctx context.Context, event *events.Event) error {
			return errors.New("sink unavailable")
		}

		_, err := f.svc.StartTask(ctx, domain.TaskTypeTranscribe, map[string]string{}, "athens", "m-1", StartOptions{})
		require.NoError(t, err)
	})
}
