package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_TableName(t *testing.T) {
	assert.Equal(t, "submgr_user", User{}.TableName())
}

func TestNewUser(t *testing.T) {
	u := NewUser("alice", "pbkdf2:sha256:1$salt$hash")

	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.Active)
	assert.False(t, u.IsAdmin)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestUser_PasswordNeverSerialized(t *testing.T) {
	data, err := json.Marshal(NewUser("alice", "secret-hash"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
}
