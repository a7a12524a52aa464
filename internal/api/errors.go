package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/jobsearch-api/internal/api/shared"
	"github.com/phrazzld/jobsearch-api/internal/service"
	"github.com/phrazzld/jobsearch-api/internal/store"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// Request parsing errors.
var (
	errInvalidID    = errors.New("invalid id")
	errInvalidQuery = errors.New("invalid query parameter")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrCompanyNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, errInvalidID),
		errors.Is(err, errInvalidQuery),
		errors.Is(err, service.ErrInvalidTaskRequest),
		errors.Is(err, service.ErrInvalidCompany),
		errors.Is(err, task.ErrUnknownTaskType),
		errors.Is(err, task.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, task.ErrInvalidTransition):
		return http.StatusConflict

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	// Handle nil error
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrCompanyNotFound), errors.Is(err, store.ErrCompanyNotFound):
		return "Company not found"

	case errors.Is(err, errInvalidID):
		return "Invalid ID format"

	case errors.Is(err, errInvalidQuery):
		return "Invalid query parameter"

	case errors.Is(err, task.ErrUnknownTaskType):
		return "Unknown task type"

	case errors.Is(err, task.ErrInvalidStatus):
		return "Invalid task status"

	case errors.Is(err, service.ErrInvalidTaskRequest):
		return "Invalid task request"

	case errors.Is(err, service.ErrInvalidCompany), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid company data"

	case errors.Is(err, task.ErrInvalidTransition):
		return "Task is not in a state that allows this operation"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status code and safe message for err, logging
// the full error. A non-empty message replaces the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// HandleValidationError writes a 400 response for a request that failed
// struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gte":
		return "must not be negative"
	case "url":
		return "invalid URL"
	default:
		return "validation failed"
	}
}
