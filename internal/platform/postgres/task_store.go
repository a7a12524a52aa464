package postgres

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

const taskColumns = `id, type, subject_key, params, status, result, error, created_at, updated_at`

// PostgresTaskStore implements the task.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With("component", "postgres_task_store"),
	}
}

// Create implements task.TaskStore.
func (s *PostgresTaskStore) Create(
	ctx context.Context,
	taskType task.Type,
	subjectKey string,
	params json.RawMessage,
) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	t := task.New(taskType, subjectKey, params, time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, subject_key, params, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', $6, $7)`,
		t.ID,
		string(t.Type),
		t.SubjectKey,
		nullableJSON(t.Params),
		string(t.Status),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_type", string(taskType)),
			slog.String("error", err.Error()))
		return nil, storageError("create", MapError(err))
	}
	return t, nil
}

// Get implements task.TaskStore.
func (s *PostgresTaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, storageError("get", MapError(err))
	}
	return t, nil
}

// ClaimNext implements task.TaskStore. SKIP LOCKED lets concurrent claimers
// pass over a row another transaction is claiming instead of waiting on it.
func (s *PostgresTaskStore) ClaimNext(ctx context.Context, taskType task.Type) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = 'running', updated_at = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE type = $1 AND status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		string(taskType),
	)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to claim task",
			slog.String("task_type", string(taskType)),
			slog.String("error", err.Error()))
		return nil, storageError("claim", MapError(err))
	}
	return t, nil
}

// Complete implements task.TaskStore.
func (s *PostgresTaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if err := task.CheckResult(result); err != nil {
		return err
	}
	return s.finish(ctx, id, task.StatusCompleted, `
		UPDATE tasks SET status = 'completed', result = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'running'`,
		id, nullableJSON(result))
}

// Fail implements task.TaskStore.
func (s *PostgresTaskStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if err := task.CheckFailureMessage(message); err != nil {
		return err
	}
	return s.finish(ctx, id, task.StatusFailed, `
		UPDATE tasks SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'running'`,
		id, message)
}

// finish runs a guarded terminal transition. When no row matched, it looks
// the task up again to tell an unknown id from a forbidden transition.
func (s *PostgresTaskStore) finish(ctx context.Context, id uuid.UUID, next task.Status, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
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
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrTaskNotFound
	}
	if err != nil {
		return storageError(string(next), MapError(err))
	}

	logger.FromContextOrDefault(ctx, s.logger).Warn("rejected task transition",
		slog.String("task_id", id.String()),
		slog.String("from", current),
		slog.String("to", string(next)))
	return fmt.Errorf("task %s: %w", id, task.CheckTransition(task.Status(current), next))
}

// List implements task.TaskStore.
func (s *PostgresTaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.SubjectKey != "" {
		add("subject_key = $%d", filter.SubjectKey)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

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
func (s *PostgresTaskStore) FailStale(ctx context.Context, olderThan time.Duration, message string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'failed', error = $1, updated_at = NOW()
		WHERE status = 'running' AND updated_at < NOW() - make_interval(secs => $2)`,
		message, olderThan.Seconds())
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
		t                task.Task
		taskType, status string
		params, result   []byte
	)
	if err := row.Scan(&t.ID, &taskType, &t.SubjectKey, &params, &status, &result, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	t.Type = task.Type(taskType)
	t.Status = task.Status(status)
	if params != nil {
		t.Params = json.RawMessage(params)
	}
	if result != nil {
		t.Result = json.RawMessage(result)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func storageError(op string, err error) error {
	return task.StorageError(op, store.NewStoreError("task", op, "postgres", err))
}
