package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyInput is returned when there is nothing to build a prompt from.
	ErrEmptyInput = errors.New("generation input cannot be empty")
)
