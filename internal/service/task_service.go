package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// TaskService creates tasks and reports their status. It never runs a task
// and never changes a task after creating it.
type TaskService interface {
	// Enqueue validates the request and inserts a pending task. It returns as
	// soon as the row exists.
	Enqueue(ctx context.Context, taskType task.Type, subjectKey string, params json.RawMessage) (*task.Task, error)

	// Status returns the current state of a task.
	// Returns ErrTaskNotFound for unknown ids.
	Status(ctx context.Context, id uuid.UUID) (*task.Task, error)

	// List returns recent tasks matching filter, newest first.
	List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	store  task.TaskStore
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if store or logger is nil.
func NewTaskService(store task.TaskStore, logger *slog.Logger) (TaskService, error) {
	if store == nil {
		return nil, fmt.Errorf("task store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &taskServiceImpl{
		store:  store,
		logger: logger.With("component", "task_service"),
	}, nil
}

// Enqueue implements TaskService.
func (s *taskServiceImpl) Enqueue(
	ctx context.Context,
	taskType task.Type,
	subjectKey string,
	params json.RawMessage,
) (*task.Task, error) {
	if _, err := task.ParseType(string(taskType)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTaskRequest, err)
	}

	subjectKey = strings.TrimSpace(subjectKey)
	if subjectKey == "" {
		return nil, fmt.Errorf("%w: subject key cannot be empty", ErrInvalidTaskRequest)
	}

	if len(params) > 0 && !json.Valid(params) {
		return nil, fmt.Errorf("%w: params must be valid JSON", ErrInvalidTaskRequest)
	}

	t, err := s.store.Create(ctx, taskType, subjectKey, params)
	if err != nil {
		s.logger.Error("failed to create task",
			"error", err,
			"task_type", taskType,
			"subject_key", subjectKey)
		return nil, wrapError("task", "enqueue", "failed to create task", err)
	}

	s.logger.Info("task enqueued",
		"task_id", t.ID,
		"task_type", t.Type,
		"subject_key", t.SubjectKey)
	return t, nil
}

// Status implements TaskService.
func (s *taskServiceImpl) Status(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		wrapped := wrapError("task", "status", "failed to get task", err)
		if wrapped != ErrTaskNotFound {
			s.logger.Error("failed to get task", "error", err, "task_id", id)
		}
		return nil, wrapped
	}
	return t, nil
}

// List implements TaskService.
func (s *taskServiceImpl) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	if filter.Type != "" {
		if _, err := task.ParseType(string(filter.Type)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTaskRequest, err)
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidTaskRequest, task.ErrInvalidStatus, filter.Status)
	}

	tasks, err := s.store.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		return nil, wrapError("task", "list", "failed to list tasks", err)
	}
	return tasks, nil
}
