package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps them to status codes.
var (
	// ErrInvalidTaskRequest indicates an enqueue request with an unknown type
	// or an empty subject key. API layer should map this to HTTP 400.
	ErrInvalidTaskRequest = errors.New("invalid task request")

	// ErrTaskNotFound indicates that the task does not exist.
	// API layer should map this to HTTP 404.
	ErrTaskNotFound = errors.New("task not found")

	// ErrCompanyNotFound indicates that the company does not exist.
	// API layer should map this to HTTP 404.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrInvalidCompany indicates a company patch that fails validation.
	// API layer should map this to HTTP 400.
	ErrInvalidCompany = errors.New("invalid company")
)

// ServiceError wraps unexpected errors from a service with context.
type ServiceError struct {
	// Service is the service that failed (e.g., "task", "company")
	Service string
	// Operation is the operation that failed (e.g., "enqueue", "import")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// wrapError maps store and domain sentinels to service sentinels and wraps
// anything else in a ServiceError.
func wrapError(service, operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, store.ErrCompanyNotFound):
		return ErrCompanyNotFound
	case errors.Is(err, ErrInvalidTaskRequest), errors.Is(err, ErrInvalidCompany),
		errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrCompanyNotFound):
		return err
	case errors.Is(err, store.ErrInvalidEntity), errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%w: %w", ErrInvalidCompany, err)
	case errors.Is(err, task.ErrUnknownTaskType):
		return fmt.Errorf("%w: %w", ErrInvalidTaskRequest, err)
	}

	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
