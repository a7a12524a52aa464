package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// busyRetries bounds retries of a statement that hit a locked database.
const busyRetries = 5

const taskColumns = `id, type, subject_key, params, status, result, error, created_at, updated_at`

// TaskStore implements task.TaskStore on SQLite.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ task.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore. The schema must already be migrated.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: logger.With("component", "sqlite_task_store"),
		now:    time.Now,
	}
}

// Create implements task.TaskStore.
func (s *TaskStore) Create(
	ctx context.Context,
	taskType task.Type,
	subjectKey string,
	params json.RawMessage,
) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	t := task.New(taskType, subjectKey, params, s.now())

	err := retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (id, type, subject_key, params, status, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
			t.ID.String(),
			string(t.Type),
			t.SubjectKey,
			nullableJSON(t.Params),
			string(t.Status),
			formatTime(t.CreatedAt),
			formatTime(t.UpdatedAt),
		)
		return err
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("task_type", string(taskType)),
			slog.String("error", err.Error()))
		return nil, storageError("create", MapError(err))
	}

	log.Debug("task created",
		slog.String("task_id", t.ID.String()),
		slog.String("task_type", string(t.Type)))
	return t, nil
}

// Get implements task.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String())

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, storageError("get", MapError(err))
	}
	return t, nil
}

// ClaimNext implements task.TaskStore. The select and the status change are
// one statement, so two workers can never claim the same row.
func (s *TaskStore) ClaimNext(ctx context.Context, taskType task.Type) (*task.Task, error) {
	var claimed *task.Task
	err := retryOnBusy(ctx, busyRetries, func() error {
		row := s.db.QueryRowContext(ctx, `
			UPDATE tasks
			SET status = 'running', updated_at = ?
			WHERE id = (
				SELECT id FROM tasks
				WHERE type = ? AND status = 'pending'
				ORDER BY created_at, id
				LIMIT 1
			) AND status = 'pending'
			RETURNING `+taskColumns,
			formatTime(s.now()),
			string(taskType),
		)

		t, err := scanTask(row)
		if err != nil {
			return err
		}
		claimed = t
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("claim", MapError(err))
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("task claimed",
		slog.String("task_id", claimed.ID.String()),
		slog.String("task_type", string(claimed.Type)))
	return claimed, nil
}

// Complete implements task.TaskStore.
func (s *TaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if err := task.CheckResult(result); err != nil {
		return err
	}
	return s.finish(ctx, id, task.StatusCompleted,
		`UPDATE tasks SET status = 'completed', result = ?, updated_at = ?
		 WHERE id = ? AND status = 'running'`,
		nullableJSON(result), formatTime(s.now()), id.String())
}

// Fail implements task.TaskStore.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if err := task.CheckFailureMessage(message); err != nil {
		return err
	}
	return s.finish(ctx, id, task.StatusFailed,
		`UPDATE tasks SET status = 'failed', error = ?, updated_at = ?
		 WHERE id = ? AND status = 'running'`,
		message, formatTime(s.now()), id.String())
}

// finish runs a guarded terminal transition. When no row matched, it looks
// the task up again to tell an unknown id from a forbidden transition.
func (s *TaskStore) finish(ctx context.Context, id uuid.UUID, next task.Status, query string, args ...any) error {
	var result sql.Result
	err := retryOnBusy(ctx, busyRetries, func() error {
		var err error
		result, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return storageError(string(next), MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError(string(next), err)
	}
	if rows == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrTaskNotFound
	}
	if err != nil {
		return storageError(string(next), MapError(err))
	}
	return fmt.Errorf("task %s: %w", id, task.CheckTransition(task.Status(current), next))
}

// List implements task.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.SubjectKey != "" {
		where = append(where, "subject_key = ?")
		args = append(args, filter.SubjectKey)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("list", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storageError("list", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list", MapError(err))
	}
	return tasks, nil
}

// FailStale implements task.TaskStore.
func (s *TaskStore) FailStale(ctx context.Context, olderThan time.Duration, message string) (int, error) {
	now := s.now()
	var result sql.Result
	err := retryOnBusy(ctx, busyRetries, func() error {
		var err error
		result, err = s.db.ExecContext(ctx, `
			UPDATE tasks SET status = 'failed', error = ?, updated_at = ?
			WHERE status = 'running' AND updated_at < ?`,
			message, formatTime(now), formatTime(now.Add(-olderThan)))
		return err
	})
	if err != nil {
		return 0, storageError("fail_stale", MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("fail_stale", err)
	}
	return int(rows), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                    task.Task
		id, taskType, status string
		params, result       sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &taskType, &t.SubjectKey, &params, &status, &result, &t.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid stored task id %q: %w", id, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	t.Type = task.Type(taskType)
	t.Status = task.Status(status)
	if params.Valid {
		t.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	return &t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func storageError(op string, err error) error {
	return task.StorageError(op, store.NewStoreError("task", op, "sqlite", err))
}
