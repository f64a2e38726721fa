// Package auth provides password hashing for stored user credentials.
//
// Hashes use PBKDF2-HMAC-SHA256 and are encoded as
//
//	pbkdf2:sha256:<iterations>$<salt>$<hex digest>
//
// so the method and cost can be read back from the stored value.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 cost used by HashPassword.
	DefaultIterations = 260000

	method  = "pbkdf2"
	digest  = "sha256"
	saltLen = 16
	keyLen  = sha256.Size
)

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword hashes password with a fresh random salt and DefaultIterations.
func HashPassword(password string) (string, error) {
	return HashPasswordWithIterations(password, DefaultIterations)
}

// HashPasswordWithIterations hashes password with the given PBKDF2 cost.
func HashPasswordWithIterations(password string, iterations int) (string, error) {
	if iterations <= 0 {
		return "", fmt.Errorf("iterations must be > 0, got %d", iterations)
	}

	raw := make([]byte, saltLen/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	return encode(iterations, salt, derive(password, salt, iterations)), nil
}

// CheckPassword reports whether password matches hash.
// A malformed hash never matches.
func CheckPassword(hash, password string) bool {
	iterations, salt, want, err := decode(hash)
	if err != nil {
		return false
	}
	got := derive(password, salt, iterations)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// IsHash reports whether s looks like a value produced by HashPassword.
func IsHash(s string) bool {
	_, _, _, err := decode(s)
	return err == nil
}

func derive(password, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, sha256.New)
}

func encode(iterations int, salt string, key []byte) string {
	return fmt.Sprintf("%s:%s:%d$%s$%s", method, digest, iterations, salt, hex.EncodeToString(key))
}

func decode(hash string) (int, string, []byte, error) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return 0, "", nil, ErrMalformedHash
	}

	params := strings.Split(parts[0], ":")
	if len(params) != 3 || params[0] != method || params[1] != digest {
		return 0, "", nil, ErrMalformedHash
	}
	iterations, err := strconv.Atoi(params[2])
	if err != nil || iterations <= 0 {
		return 0, "", nil, ErrMalformedHash
	}

	key, err := hex.DecodeString(parts[2])
	if err != nil || len(key) != keyLen {
		return 0, "", nil, ErrMalformedHash
	}
	return iterations, parts[1], key, nil
}
