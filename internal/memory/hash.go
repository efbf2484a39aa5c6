package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Normalize canonicalizes content before hashing and storage: line endings
// are unified and surrounding whitespace is trimmed. Two inputs differing
// only in leading/trailing whitespace therefore share a content hash.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.TrimSpace(content)
}

// HashContent returns the deduplication key for normalized content:
// a SHA-256 hex digest.
func HashContent(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

var (
	entropyMu sync.Mutex
	entropy   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewID generates a process-wide unique chunk identifier. ULIDs are
// time-ordered and never reused, which keeps the id space safe for future
// tombstoning.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
