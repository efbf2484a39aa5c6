// Package memory defines the domain model for the hybrid memory system:
// chunks, search results, backend contracts, and the error taxonomy shared
// by the coordinator and every storage backend.
package memory

import (
	"context"
	"time"
)

// Chunk is the unit of stored memory: a piece of normalized text, its
// embedding, and the provenance the caller attached to it.
//
// ID, Content, ContentHash, Embedding, and CreatedAt are immutable after
// the first successful write. AccessCount and LastAccessedAt are bumped by
// the primary store on reads and duplicate-write hits; they drive cache
// warmth, not correctness, and may be lossy under concurrency.
type Chunk struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	ContentHash    string     `json:"content_hash"`
	Embedding      []float32  `json:"-"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	SourceType     string     `json:"source_type,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AccessCount    int64      `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// SearchResult is a transient, derived view of a chunk produced by one
// backend. Score is backend-local: the only contract is "higher is more
// relevant within the same backend's result set". Scores from different
// backends are not comparable.
type SearchResult struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Score      float64  `json:"score"`
	Metadata   Metadata `json:"metadata,omitempty"`
	SourceType string   `json:"source_type,omitempty"`
	Backend    string   `json:"backend"`
}

// Query carries one backend search request. Vector-capable backends use
// Embedding; keyword backends use Text. Both are always populated by the
// coordinator so each backend picks what it supports.
type Query struct {
	Text       string
	Embedding  []float32
	SourceType string
	Limit      int
}

// Primary is the authoritative store. It is the sole arbiter of the
// one-chunk-per-content-hash invariant and the only backend whose failures
// propagate to callers.
type Primary interface {
	// Name identifies the backend in results and logs.
	Name() string

	// Insert durably writes a new chunk. Returns ErrDuplicateContent if a
	// chunk with the same ContentHash already exists.
	Insert(ctx context.Context, chunk *Chunk) error

	// GetByHash returns the chunk with the given content hash, or
	// ErrNotFound.
	GetByHash(ctx context.Context, hash string) (*Chunk, error)

	// Search ranks chunks by vector similarity against q.Embedding.
	Search(ctx context.Context, q Query) ([]SearchResult, error)

	// BumpAccess increments access counters for the given ids. Lossy under
	// race by design.
	BumpAccess(ctx context.Context, ids []string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// Mirror is a best-effort replica optimized for a particular kind of
// similarity search. Mirror failures degrade recall, never availability.
type Mirror interface {
	Name() string

	// Insert replicates a chunk. Best-effort; the caller logs and ignores
	// failures.
	Insert(ctx context.Context, chunk *Chunk) error

	// Delete removes a chunk by id. Used only to compensate a failed
	// primary write; there is no caller-facing delete operation.
	Delete(ctx context.Context, id string) error

	// Search returns backend-local ranked results for the query.
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}

// Cache is the short-TTL layer for recently written chunks and recent
// query result sets. All operations are best-effort and in-process.
type Cache interface {
	Name() string

	// SetChunk caches a freshly written chunk under its content hash.
	SetChunk(chunk *Chunk)

	// DropChunk evicts a chunk entry. Used for write compensation.
	DropChunk(hash string)

	// GetChunk returns a cached chunk by content hash, if present and not
	// expired. Lets the dedup check skip the primary round trip.
	GetChunk(hash string) (*Chunk, bool)

	// GetResults returns a cached result set for the key, if present and
	// not expired.
	GetResults(key string) ([]SearchResult, bool)

	// SetResults caches a post-truncation result set under the key.
	SetResults(key string, results []SearchResult)
}

// Embedder maps text to a fixed-length dense vector. Implementations must
// be deterministic for identical input so caching and deduplication stay
// valid.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}
