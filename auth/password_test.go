package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPasswordWithIterations("secret", 1000)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "pbkdf2:sha256:1000$"))
	parts := strings.Split(hash, "$")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], saltLen)
	assert.Len(t, parts[2], keyLen*2)
	assert.True(t, IsHash(hash))
}

func TestHashPassword_SaltDiffers(t *testing.T) {
	a, err := HashPasswordWithIterations("secret", 1000)
	require.NoError(t, err)
	b, err := HashPasswordWithIterations("secret", 1000)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashPassword_InvalidIterations(t *testing.T) {
	_, err := HashPasswordWithIterations("secret", 0)
	assert.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPasswordWithIterations("secret", 1000)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "Secret"))
	assert.False(t, CheckPassword(hash, ""))
}

func TestCheckPassword_Malformed(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "secret"},
		{"wrong method", "bcrypt:sha256:1000$salt$" + strings.Repeat("00", keyLen)},
		{"wrong digest", "pbkdf2:sha1:1000$salt$" + strings.Repeat("00", keyLen)},
		{"bad iterations", "pbkdf2:sha256:x$salt$" + strings.Repeat("00", keyLen)},
		{"bad hex", "pbkdf2:sha256:1000$salt$zz"},
		{"short key", "pbkdf2:sha256:1000$salt$00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, CheckPassword(tt.hash, "secret"))
			assert.False(t, IsHash(tt.hash))
		})
	}
}
