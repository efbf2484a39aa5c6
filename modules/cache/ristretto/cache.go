package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/mnemohq/mnemo/internal/memory"
)

// cache implements memory.Cache. Chunk entries are keyed by content hash,
// result sets by the coordinator's query fingerprint; the prefixes keep the
// two namespaces apart.
type cache struct {
	inner      *ristretto.Cache
	chunkTTL   time.Duration
	resultsTTL time.Duration
}

// Name implements memory.Cache.
func (c *cache) Name() string { return "ristretto" }

// SetChunk implements memory.Cache.
func (c *cache) SetChunk(chunk *memory.Chunk) {
	cost := int64(len(chunk.Content) + 4*len(chunk.Embedding))
	c.inner.SetWithTTL("chunk:"+chunk.ContentHash, chunk, cost, c.chunkTTL)
}

// DropChunk implements memory.Cache.
func (c *cache) DropChunk(hash string) {
	c.inner.Del("chunk:" + hash)
}

// GetChunk implements memory.Cache.
func (c *cache) GetChunk(hash string) (*memory.Chunk, bool) {
	v, ok := c.inner.Get("chunk:" + hash)
	if !ok {
		return nil, false
	}
	chunk, ok := v.(*memory.Chunk)
	return chunk, ok
}

// GetResults implements memory.Cache.
func (c *cache) GetResults(key string) ([]memory.SearchResult, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	results, ok := v.([]memory.SearchResult)
	return results, ok
}

// SetResults implements memory.Cache.
func (c *cache) SetResults(key string, results []memory.SearchResult) {
	var cost int64 = 1
	for _, r := range results {
		cost += int64(len(r.Content))
	}
	c.inner.SetWithTTL(key, results, cost, c.resultsTTL)
}

// Wait blocks until buffered writes are applied. Test hook; production code
// never needs cache writes to be synchronous.
func (c *cache) Wait() {
	c.inner.Wait()
}
