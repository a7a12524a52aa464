package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyCompanyName is returned when a company has no name.
	ErrEmptyCompanyName = errors.New("company name cannot be empty")

	// ErrInvalidSize is returned when a headcount is negative.
	ErrInvalidSize = errors.New("company size cannot be negative")
)
