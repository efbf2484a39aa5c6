// Package memorytest provides deterministic fakes for the memory backends:
// a hash-seeded embedder and in-memory primary/mirror/cache implementations
// with failure injection.
package memorytest

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/mnemohq/mnemo/internal/memory"
)

// Embedder generates deterministic unit vectors from a text hash. The same
// input always yields the same vector, which keeps dedup and cache tests
// stable without a model.
type Embedder struct {
	Dim int

	// Err, when set, is returned by every Embed call.
	Err error

	mu    sync.Mutex
	calls int
}

// NewEmbedder returns an embedder producing 384-dimensional vectors.
func NewEmbedder() *Embedder {
	return &Embedder{Dim: 384}
}

// Embed implements memory.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.Dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed)) / float32(math.MaxInt64)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dims implements memory.Embedder.
func (e *Embedder) Dims() int { return e.Dim }

// Calls returns how many times Embed was invoked.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Primary is an in-memory memory.Primary with failure injection.
type Primary struct {
	// FailWith, when set, is returned by every operation.
	FailWith error

	// InsertErr, when set, is returned by Insert only. Lets tests reach
	// the fan-out with a healthy dedup lookup but a failing write.
	InsertErr error

	// MissLookups makes the next N GetByHash calls report ErrNotFound even
	// when the chunk exists, simulating the check-then-act dedup race.
	MissLookups int

	mu     sync.Mutex
	byHash map[string]*memory.Chunk
	byID   map[string]*memory.Chunk
}

// NewPrimary returns an empty fake primary store.
func NewPrimary() *Primary {
	return &Primary{
		byHash: make(map[string]*memory.Chunk),
		byID:   make(map[string]*memory.Chunk),
	}
}

// Name implements memory.Primary.
func (p *Primary) Name() string { return "fake-primary" }

// Insert implements memory.Primary. Enforces the content-hash unique
// constraint the way the real store's UNIQUE index does.
func (p *Primary) Insert(_ context.Context, chunk *memory.Chunk) error {
	if p.FailWith != nil {
		return p.FailWith
	}
	if p.InsertErr != nil {
		return p.InsertErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[chunk.ContentHash]; exists {
		return memory.ErrDuplicateContent
	}
	cp := *chunk
	p.byHash[chunk.ContentHash] = &cp
	p.byID[chunk.ID] = &cp
	return nil
}

// GetByHash implements memory.Primary.
func (p *Primary) GetByHash(_ context.Context, hash string) (*memory.Chunk, error) {
	if p.FailWith != nil {
		return nil, p.FailWith
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.MissLookups > 0 {
		p.MissLookups--
		return nil, memory.ErrNotFound
	}

	chunk, ok := p.byHash[hash]
	if !ok {
		return nil, memory.ErrNotFound
	}
	cp := *chunk
	return &cp, nil
}

// Search implements memory.Primary using cosine similarity over stored
// embeddings.
func (p *Primary) Search(_ context.Context, q memory.Query) ([]memory.SearchResult, error) {
	if p.FailWith != nil {
		return nil, p.FailWith
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var results []memory.SearchResult
	for _, chunk := range p.byID {
		if q.SourceType != "" && chunk.SourceType != q.SourceType {
			continue
		}
		results = append(results, memory.SearchResult{
			ID:         chunk.ID,
			Content:    chunk.Content,
			Score:      Cosine(q.Embedding, chunk.Embedding),
			Metadata:   chunk.Metadata,
			SourceType: chunk.SourceType,
			Backend:    p.Name(),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// BumpAccess implements memory.Primary.
func (p *Primary) BumpAccess(_ context.Context, ids []string) error {
	if p.FailWith != nil {
		return p.FailWith
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range ids {
		if chunk, ok := p.byID[id]; ok {
			chunk.AccessCount++
		}
	}
	return nil
}

// Count implements memory.Primary.
func (p *Primary) Count(_ context.Context) (int64, error) {
	if p.FailWith != nil {
		return 0, p.FailWith
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.byID)), nil
}

// Ping implements memory.Primary.
func (p *Primary) Ping(_ context.Context) error {
	return p.FailWith
}

// AccessCount returns the stored access counter for an id.
func (p *Primary) AccessCount(id string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chunk, ok := p.byID[id]; ok {
		return chunk.AccessCount
	}
	return 0
}

// Len returns the number of stored chunks.
func (p *Primary) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// Mirror is an in-memory memory.Mirror with failure injection and fixed
// scores, so merge tests can control exactly what each backend returns.
type Mirror struct {
	// BackendName is returned by Name. Defaults to "fake-mirror".
	BackendName string

	// FailWith, when set, is returned by Insert and Search.
	FailWith error

	// FixedResults, when non-nil, is returned verbatim by Search (subject
	// to q.Limit) instead of searching stored chunks.
	FixedResults []memory.SearchResult

	mu     sync.Mutex
	chunks map[string]*memory.Chunk
}

// NewMirror returns an empty fake mirror.
func NewMirror(name string) *Mirror {
	return &Mirror{
		BackendName: name,
		chunks:      make(map[string]*memory.Chunk),
	}
}

// Name implements memory.Mirror.
func (m *Mirror) Name() string {
	if m.BackendName == "" {
		return "fake-mirror"
	}
	return m.BackendName
}

// Insert implements memory.Mirror.
func (m *Mirror) Insert(_ context.Context, chunk *memory.Chunk) error {
	if m.FailWith != nil {
		return m.FailWith
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *chunk
	m.chunks[chunk.ID] = &cp
	return nil
}

// Delete implements memory.Mirror.
func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, id)
	return nil
}

// Search implements memory.Mirror.
func (m *Mirror) Search(_ context.Context, q memory.Query) ([]memory.SearchResult, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	if m.FixedResults != nil {
		results := make([]memory.SearchResult, len(m.FixedResults))
		copy(results, m.FixedResults)
		for i := range results {
			results[i].Backend = m.Name()
		}
		if q.Limit > 0 && len(results) > q.Limit {
			results = results[:q.Limit]
		}
		return results, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var results []memory.SearchResult
	for _, chunk := range m.chunks {
		if q.SourceType != "" && chunk.SourceType != q.SourceType {
			continue
		}
		results = append(results, memory.SearchResult{
			ID:      chunk.ID,
			Content: chunk.Content,
			Score:   Cosine(q.Embedding, chunk.Embedding),
			Backend: m.Name(),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Has reports whether the mirror holds a chunk with the given id.
func (m *Mirror) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chunks[id]
	return ok
}

// Len returns the number of replicated chunks.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

// Cache is a map-backed memory.Cache without TTL semantics; entries live
// until dropped.
type Cache struct {
	mu      sync.Mutex
	chunks  map[string]*memory.Chunk
	results map[string][]memory.SearchResult
}

// NewCache returns an empty fake cache.
func NewCache() *Cache {
	return &Cache{
		chunks:  make(map[string]*memory.Chunk),
		results: make(map[string][]memory.SearchResult),
	}
}

// Name implements memory.Cache.
func (c *Cache) Name() string { return "fake-cache" }

// SetChunk implements memory.Cache.
func (c *Cache) SetChunk(chunk *memory.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *chunk
	c.chunks[chunk.ContentHash] = &cp
}

// DropChunk implements memory.Cache.
func (c *Cache) DropChunk(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chunks, hash)
}

// GetChunk implements memory.Cache.
func (c *Cache) GetChunk(hash string) (*memory.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunk, ok := c.chunks[hash]
	if !ok {
		return nil, false
	}
	cp := *chunk
	return &cp, true
}

// GetResults implements memory.Cache.
func (c *Cache) GetResults(key string) ([]memory.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	results, ok := c.results[key]
	return results, ok
}

// SetResults implements memory.Cache.
func (c *Cache) SetResults(key string, results []memory.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = results
}

// HasChunk reports whether a chunk is cached under the given hash.
func (c *Cache) HasChunk(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.chunks[hash]
	return ok
}

// ResultSets returns the number of cached result sets.
func (c *Cache) ResultSets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Cosine computes cosine similarity between two vectors.
func Cosine(a, b []float32) float64 {
	return memory.Cosine(a, b)
}
