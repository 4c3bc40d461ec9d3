package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(ErrCodeUnknownCondition, "unknown condition type", "asthma", "req-1")

	assert.Equal(t, ErrCodeUnknownCondition, err.Code)
	assert.Equal(t, "asthma", err.Details)
	assert.Equal(t, "req-1", err.RequestID)
	assert.False(t, err.Timestamp.IsZero())
	assert.Equal(t, "UNKNOWN_CONDITION: unknown condition type", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("blood_pressure", "unparseable reading", "abc")

	assert.Equal(t, "blood_pressure", err.Field)
	assert.Equal(t, "abc", err.Value)
	assert.Contains(t, err.Error(), "blood_pressure")
}
