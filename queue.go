package submanager

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateQueue returns a new broker queue name.
//
// Names are 128-bit random tokens (UUIDv4) rendered as 32 hex characters.
// Uniqueness is probabilistic; no lookup is made before use.
func GenerateQueue() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
