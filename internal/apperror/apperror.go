// Package apperror holds the error taxonomy shared by the query builder,
// the service layer and the repositories. HTTP mapping lives in the handler package.
package apperror

import (
	"errors"
	"strings"
)

var (
	ErrNotFound         = errors.New("company not found")
	ErrInvalidID        = errors.New("invalid company id")
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field-level failure of one request.
type ValidationError struct {
	Fields []FieldError
}

// NewValidation returns a ValidationError for a single field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the message for field, if it failed.
func (e *ValidationError) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}
