package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	verr := NewValidation("name", "is required")
	verr.Add("location", "is required")

	assert.True(t, verr.HasErrors())
	assert.Equal(t, "validation failed: name: is required; location: is required", verr.Error())

	msg, ok := verr.Field("location")
	assert.True(t, ok)
	assert.Equal(t, "is required", msg)

	_, ok = verr.Field("industry")
	assert.False(t, ok)
}

func TestValidationError_Is(t *testing.T) {
	wrapped := fmt.Errorf("create company: %w", NewValidation("name", "is required"))

	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	var verr *ValidationError
	assert.True(t, errors.As(wrapped, &verr))
	assert.Len(t, verr.Fields, 1)
}

func TestValidationError_Empty(t *testing.T) {
	var verr *ValidationError
	assert.False(t, verr.HasErrors())
	assert.False(t, (&ValidationError{}).HasErrors())
}
