package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/store"
)

// CheckTaskIdempotency decides whether a new dispatch of the given type and
// scope may proceed.
//
// A succeeded task always takes priority: if one exists the check
// short-circuits without looking for running tasks. Otherwise any task still
// in flight blocks. With opts.Force the check passes unconditionally and
// performs zero store queries.
//
// The guard is a best-effort query, not a transactional compare-and-swap: two
// concurrent callers can both pass it. It narrows the duplicate window, it
// does not close it.
func (s *Service) CheckTaskIdempotency(
	ctx context.Context,
	taskType domain.TaskType,
	cityID, meetingID string,
	opts StartOptions,
) (*IdempotencyResult, error) {
	if opts.Force {
		return &IdempotencyResult{Proceed: true}, nil
	}

	succeeded, err := s.tasks.FindNewestSucceeded(ctx, taskType, cityID, meetingID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for succeeded task: %w", err)
	}
	if succeeded != nil {
		return &IdempotencyResult{
			Proceed:       false,
			ExistingTask:  succeeded,
			BlockedReason: BlockedAlreadySucceeded,
		}, nil
	}

	running, err := s.tasks.FindRunning(ctx, taskType, cityID, meetingID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for running task: %w", err)
	}
	if running != nil {
		return &IdempotencyResult{
			Proceed:       false,
			ExistingTask:  running,
			BlockedReason: BlockedAlreadyRunning,
		}, nil
	}

	return &IdempotencyResult{Proceed: true}, nil
}
