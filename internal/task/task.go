package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies which capability a task is dispatched to.
type Type string

// Known task types.
const (
	// TypeResearch researches a company and merges the findings into its record.
	TypeResearch Type = "research"

	// TypeGenerateMessage drafts a reply to the company's recruiter message.
	TypeGenerateMessage Type = "generate_message"
)

// KnownTypes lists every task type this build can execute.
func KnownTypes() []Type {
	return []Type{TypeResearch, TypeGenerateMessage}
}

// ParseType converts a string into a known task Type.
func ParseType(s string) (Type, error) {
	for _, t := range KnownTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, s)
}

// Status represents the current state of a task.
type Status string

// Possible task status values. Pending and running are the only
// non-terminal states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus converts a string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next:
//
//	pending --claim--> running --complete--> completed
//	                   running --fail------> failed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// CheckTransition returns ErrInvalidTransition, annotated with both states,
// when the move from current to next is not allowed.
func CheckTransition(current, next Status) error {
	if current.CanTransitionTo(next) {
		return nil
	}
	return &TransitionError{From: current, To: next}
}

// Task is a unit of asynchronous work tracked through a fixed lifecycle.
type Task struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	SubjectKey string          `json:"subject_key"`
	Params     json.RawMessage `json:"params,omitempty"`
	Status     Status          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// New builds a pending task with a fresh id. Stores use it so every backend
// assigns ids and timestamps the same way.
func New(taskType Type, subjectKey string, params json.RawMessage, now time.Time) *Task {
	now = now.UTC()
	return &Task{
		ID:         uuid.New(),
		Type:       taskType,
		SubjectKey: subjectKey,
		Params:     params,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DecodeParams unmarshals the task parameters into v. Tasks without
// parameters leave v untouched.
func (t *Task) DecodeParams(v any) error {
	if len(t.Params) == 0 || string(t.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(t.Params, v); err != nil {
		return fmt.Errorf("failed to decode %s task params: %w", t.Type, err)
	}
	return nil
}

// DecodeResult unmarshals the result payload of a completed task into v.
func (t *Task) DecodeResult(v any) error {
	if t.Status != StatusCompleted {
		return fmt.Errorf("task %s has no result in status %s", t.ID, t.Status)
	}
	if err := json.Unmarshal(t.Result, v); err != nil {
		return fmt.Errorf("failed to decode %s task result: %w", t.Type, err)
	}
	return nil
}

// CheckResult reports whether result can be stored on a completed task. It
// must be a JSON value other than null.
func CheckResult(result json.RawMessage) error {
	trimmed := bytes.TrimSpace(result)
	switch {
	case len(trimmed) == 0, string(trimmed) == "null":
		return fmt.Errorf("%w: completed task requires a result", ErrInvalidOutcome)
	case !json.Valid(trimmed):
		return fmt.Errorf("%w: result is not valid JSON", ErrInvalidOutcome)
	}
	return nil
}

// CheckFailureMessage reports whether message can be stored on a failed task.
func CheckFailureMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: failed task requires an error message", ErrInvalidOutcome)
	}
	return nil
}

// Clone returns a copy of t that shares no mutable state with it.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Params != nil {
		clone.Params = append(json.RawMessage(nil), t.Params...)
	}
	if t.Result != nil {
		clone.Result = append(json.RawMessage(nil), t.Result...)
	}
	return &clone
}

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListFilter narrows a task listing. Zero values match everything.
type ListFilter struct {
	Type       Type
	Status     Status
	SubjectKey string
	Limit      int
}

// EffectiveLimit clamps the requested limit into [1, MaxListLimit].
func (f ListFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// TaskStore is the durable task table and the single source of truth for
// task state. It is the only resource shared between the request-handling
// process and the worker daemon.
type TaskStore interface {
	// Create inserts a new pending task with a generated id and empty
	// result/error. It fails only on storage errors.
	Create(ctx context.Context, taskType Type, subjectKey string, params json.RawMessage) (*Task, error)

	// Get looks up a task by id. Returns store.ErrTaskNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*Task, error)

	// ClaimNext atomically moves the oldest pending task of the given type
	// (created_at, then id) to running and returns it. Concurrent callers never
	// receive the same task. Returns (nil, nil) when nothing is pending.
	ClaimNext(ctx context.Context, taskType Type) (*Task, error)

	// Complete moves a running task to completed and stores its result.
	// Returns ErrInvalidOutcome for an empty or non-JSON result,
	// ErrInvalidTransition if the task is not running, and
	// store.ErrTaskNotFound if it does not exist. The row is unchanged on
	// every error.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Fail moves a running task to failed and stores the error message.
	// Same guards as Complete; a blank message is ErrInvalidOutcome.
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// List returns tasks matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	// FailStale fails every running task whose last update is older than
	// olderThan and returns how many were failed.
	FailStale(ctx context.Context, olderThan time.Duration, message string) (int, error)
}
