package task

import (
	"errors"
	"fmt"
)

// Common task errors.
var (
	// ErrInvalidTransition indicates a status change the state machine forbids,
	// such as completing a task that is not running.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrUnknownTaskType indicates a task type with no registered handler.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrStorage indicates the task store could not be read or written.
	ErrStorage = errors.New("task storage error")

	// ErrInvalidOutcome indicates a terminal transition without a usable
	// outcome: a completed task needs a JSON result and a failed task needs
	// an error message.
	ErrInvalidOutcome = errors.New("invalid task outcome")

	// ErrNoHandlers is returned by Daemon.Run when the registry is empty.
	ErrNoHandlers = errors.New("no task handlers registered")
)

// TransitionError records the states involved in a rejected transition.
// It matches ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CapabilityError wraps a failure reported by a task handler. Its message is
// what gets recorded as the task's error.
type CapabilityError struct {
	TaskType Type
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s task failed: %v", e.TaskType, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError wraps err as a handler failure for taskType.
func NewCapabilityError(taskType Type, err error) *CapabilityError {
	return &CapabilityError{TaskType: taskType, Err: err}
}

// StorageError wraps err so that it matches ErrStorage while keeping the
// original cause reachable through errors.As and errors.Is.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
