package memory

import "errors"

// Caller errors. Mapped to 4xx at the HTTP boundary, never retried.
var (
	// ErrInvalidContent is returned when content is empty after
	// normalization.
	ErrInvalidContent = errors.New("memory: invalid content")

	// ErrMetadataTooLarge is returned when serialized metadata exceeds the
	// configured bound. Metadata is rejected, never truncated.
	ErrMetadataTooLarge = errors.New("memory: metadata too large")
)

// Infrastructure errors. Mapped to 503, safe to retry with backoff.
var (
	// ErrEmbeddingUnavailable is returned when the embedding backend cannot
	// be reached. Callers must not substitute a zero vector.
	ErrEmbeddingUnavailable = errors.New("memory: embedding unavailable")

	// ErrPrimaryUnavailable is returned when the primary store fails or
	// times out. The only backend failure that propagates.
	ErrPrimaryUnavailable = errors.New("memory: primary store unavailable")
)

// Store-level sentinels used between the coordinator and the primary store.
var (
	// ErrDuplicateContent is returned by Primary.Insert when a chunk with
	// the same content hash already exists. The unique constraint turns the
	// check-then-act dedup race into a recoverable conflict.
	ErrDuplicateContent = errors.New("memory: duplicate content")

	// ErrNotFound is returned by lookups that match no chunk.
	ErrNotFound = errors.New("memory: chunk not found")
)
