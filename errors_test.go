package submanager

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: not found", ErrNotFound.Error())

	err := NewErrorWithCause(ErrCodeDatabase, "failed to load topic", sql.ErrConnDone)
	assert.Equal(t, "DATABASE_ERROR: failed to load topic: "+sql.ErrConnDone.Error(), err.Error())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestError_IsMatchesCode(t *testing.T) {
	err := NewErrorWithCause(ErrCodeNotFound, "topic 3", sql.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAdminRequired)
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", NewBrokerError("declare", errors.New("x")))

	assert.True(t, IsBroker(wrapped))
	assert.False(t, IsStorage(wrapped))
	assert.Equal(t, ErrCodeBroker, ErrorCode(wrapped))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))

	nested := NewErrorWithCause(ErrCodeValidation, "outer", NewError(ErrCodeDuplicate, "inner"))
	assert.True(t, IsValidation(nested))
	assert.True(t, IsDuplicate(nested))
	assert.False(t, IsNotFound(nested))
	assert.True(t, IsUnauthorized(ErrInvalidCredentials))
	assert.False(t, IsNotFound(nil))
}
