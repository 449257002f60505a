package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a new TaskStore bound to the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

const taskColumns = `id, type, status, city_id, council_meeting_id,
	request_body, response_body, stage, percent_complete, version,
	created_at, updated_at`

// Create persists a new task record.
func (s *PostgresTaskStore) Create(ctx context.Context, t *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (id, type, status, city_id, council_meeting_id,
			request_body, response_body, stage, percent_complete, version,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.Type,
		t.Status,
		t.CityID,
		t.CouncilMeetingID,
		nullableJSON(t.RequestBody),
		nullableJSON(t.ResponseBody),
		t.Stage,
		t.PercentComplete,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// Update persists the mutable fields of an existing task.
func (s *PostgresTaskStore) Update(ctx context.Context, t *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, request_body = $2, response_body = $3, stage = $4,
			percent_complete = $5, version = $6, updated_at = $7
		WHERE id = $8
	`

	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, query,
		t.Status,
		nullableJSON(t.RequestBody),
		nullableJSON(t.ResponseBody),
		t.Stage,
		t.PercentComplete,
		t.Version,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", t.ID,
			"status", t.Status,
			"error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}

	return nil
}

// GetByID loads a task by its ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return t, nil
}

// FindNewestSucceeded returns the most recent succeeded task of the given
// type for the given scope.
func (s *PostgresTaskStore) FindNewestSucceeded(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE type = $1 AND city_id = $2 AND council_meeting_id = $3
			AND status = $4
		ORDER BY created_at DESC
		LIMIT 1
	`, taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query,
		taskType, cityID, meetingID, domain.TaskStatusSucceeded))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return t, nil
}

// FindRunning returns the most recent non-terminal task of the given type for
// the given scope.
func (s *PostgresTaskStore) FindRunning(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) (*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE type = $1 AND city_id = $2 AND council_meeting_id = $3
			AND status NOT IN ($4, $5)
		ORDER BY created_at DESC
		LIMIT 1
	`, taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query,
		taskType, cityID, meetingID,
		domain.TaskStatusSucceeded, domain.TaskStatusFailed))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return t, nil
}

// FindPendingCreatedAfter returns the most recent still-pending task of the
// given type for the given scope created after the given time.
func (s *PostgresTaskStore) FindPendingCreatedAfter(ctx context.Context, taskType domain.TaskType, cityID, meetingID string, after time.Time) (*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE type = $1 AND city_id = $2 AND council_meeting_id = $3
			AND status = $4 AND created_at > $5
		ORDER BY created_at DESC
		LIMIT 1
	`, taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query,
		taskType, cityID, meetingID, domain.TaskStatusPending, after))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return t, nil
}

// ListByScope returns all tasks of the given type for the given scope, newest
// first.
func (s *PostgresTaskStore) ListByScope(ctx context.Context, taskType domain.TaskType, cityID, meetingID string) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE type = $1 AND city_id = $2 AND council_meeting_id = $3
		ORDER BY created_at DESC
	`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, taskType, cityID, meetingID)
	if err != nil {
		log.Error("failed to list tasks by scope",
			"task_type", taskType,
			"city_id", cityID,
			"council_meeting_id", meetingID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// PollWindow aggregates succeeded pollDecisions tasks for the given scope.
func (s *PostgresTaskStore) PollWindow(ctx context.Context, cityID, meetingID string) (*store.PollWindow, error) {
	query := `
		SELECT MIN(updated_at), MAX(updated_at), COUNT(*)
		FROM tasks
		WHERE type = $1 AND city_id = $2 AND council_meeting_id = $3
			AND status = $4
	`

	var window store.PollWindow
	err := s.db.QueryRowContext(ctx, query,
		domain.TaskTypePollDecisions, cityID, meetingID, domain.TaskStatusSucceeded).
		Scan(&window.FirstPolledAt, &window.LastPolledAt, &window.PollCount)
	if err != nil {
		return nil, MapError(err)
	}

	return &window, nil
}

// PollStatsByCity groups succeeded pollDecisions tasks per city, joined with
// the count of decisions discovered in that city.
func (s *PostgresTaskStore) PollStatsByCity(ctx context.Context) ([]store.CityPollStats, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT t.city_id,
			COUNT(DISTINCT t.council_meeting_id),
			COUNT(*),
			COALESCE((
				SELECT COUNT(*)
				FROM decisions d
				JOIN subjects s ON s.id = d.subject_id
				WHERE s.city_id = t.city_id
			), 0),
			MAX(t.updated_at)
		FROM tasks t
		WHERE t.type = $1 AND t.status = $2
		GROUP BY t.city_id
		ORDER BY t.city_id
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.TaskTypePollDecisions, domain.TaskStatusSucceeded)
	if err != nil {
		log.Error("failed to query poll stats", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var stats []store.CityPollStats
	for rows.Next() {
		var row store.CityPollStats
		if err := rows.Scan(
			&row.CityID,
			&row.MeetingCount,
			&row.PollCount,
			&row.DecisionCount,
			&row.LastPolledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan poll stats row: %w", err)
		}
		stats = append(stats, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating poll stats rows: %w", err)
	}

	return stats, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var requestBody, responseBody []byte
	var stage sql.NullString

	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.Status,
		&t.CityID,
		&t.CouncilMeetingID,
		&requestBody,
		&responseBody,
		&stage,
		&t.PercentComplete,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.RequestBody = requestBody
	t.ResponseBody = responseBody
	t.Stage = stage.String

	return &t, nil
}

// nullableJSON stores empty raw messages as SQL NULL instead of invalid
// zero-length jsonb.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
