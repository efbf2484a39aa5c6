package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mnemohq/mnemo/internal/memory"
)

// SearchRequest is one caller query against the hybrid store.
type SearchRequest struct {
	Query string

	// SourceType filters results to one coarse category when non-empty.
	SourceType string

	// Limit bounds the result count. Zero means "no results wanted" and
	// short-circuits; callers apply their own defaults before reaching the
	// coordinator. Values above MaxLimit are clamped.
	Limit int
}

// backendSlot captures one backend's outcome in the fan-out, allSettled
// style: a failed backend fills its error slot instead of aborting siblings.
type backendSlot struct {
	name    string
	results []memory.SearchResult
	err     error
}

// Search embeds the query once, fans it out across the primary and every
// mirror concurrently, and merges the ranked results. Mirror failures are
// absorbed; only a primary failure fails the call. Identical repeated
// queries are served from the cache without touching any backend.
func (c *Coordinator) Search(ctx context.Context, req SearchRequest) ([]memory.SearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "memory.search")
	defer span.End()

	if memory.Normalize(req.Query) == "" {
		return nil, memory.ErrInvalidContent
	}

	if req.Limit < 0 {
		req.Limit = 0
	}
	if req.Limit == 0 {
		return nil, nil
	}
	if req.Limit > c.opts.MaxLimit {
		req.Limit = c.opts.MaxLimit
	}

	c.metrics.Searches.Inc()
	span.SetAttributes(attribute.Int("memory.limit", req.Limit))

	cacheKey := resultCacheKey(req)
	if c.cache != nil {
		if cached, ok := c.cache.GetResults(cacheKey); ok {
			c.metrics.CacheHits.Inc()
			span.SetAttributes(attribute.Bool("memory.cache_hit", true))
			return cached, nil
		}
	}

	embedding, err := c.embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	// Overfetch on every backend so merge-time deduplication does not
	// shrink the pool below the caller's limit.
	query := memory.Query{
		Text:       req.Query,
		Embedding:  embedding,
		SourceType: req.SourceType,
		Limit:      req.Limit * c.opts.Overfetch,
	}

	slots := c.fanOutSearch(ctx, query)

	if slots[0].err != nil {
		c.metrics.BackendFailures.WithLabelValues(c.primary.Name(), "search").Inc()
		return nil, fmt.Errorf("%w: %v", memory.ErrPrimaryUnavailable, slots[0].err)
	}
	for _, slot := range slots[1:] {
		if slot.err != nil {
			c.metrics.BackendFailures.WithLabelValues(slot.name, "search").Inc()
			c.logger.Warn("mirror search failed", "backend", slot.name, "error", slot.err)
		}
	}

	merged := mergeSlots(slots)
	if len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	if ids := resultIDs(merged); len(ids) > 0 {
		c.bumpAccessAsync(ctx, ids)
	}

	if c.cache != nil {
		c.cache.SetResults(cacheKey, merged)
	}
	return merged, nil
}

// fanOutSearch runs every backend search concurrently and joins them into
// per-backend slots. Slot 0 is always the primary.
func (c *Coordinator) fanOutSearch(ctx context.Context, query memory.Query) []backendSlot {
	slots := make([]backendSlot, 1+len(c.mirrors))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		searchCtx, cancel := context.WithTimeout(ctx, c.opts.PrimaryTimeout)
		defer cancel()
		results, err := c.primary.Search(searchCtx, query)
		slots[0] = backendSlot{name: c.primary.Name(), results: results, err: err}
	}()

	for i, m := range c.mirrors {
		wg.Add(1)
		go func(i int, m memory.Mirror) {
			defer wg.Done()
			searchCtx, cancel := context.WithTimeout(ctx, c.mirrorTimeout(m))
			defer cancel()
			results, err := m.Search(searchCtx, query)
			slots[1+i] = backendSlot{name: m.Name(), results: results, err: err}
		}(i, m)
	}

	wg.Wait()
	return slots
}

// Healthy reports whether the primary store is reachable. Mirrors do not
// factor in: their absence degrades recall, not availability.
func (c *Coordinator) Healthy(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.opts.PrimaryTimeout)
	defer cancel()
	if err := c.primary.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", memory.ErrPrimaryUnavailable, err)
	}
	return nil
}

// ChunkCount returns the primary store's chunk count, for stats reporting.
func (c *Coordinator) ChunkCount(ctx context.Context) (int64, error) {
	countCtx, cancel := context.WithTimeout(ctx, c.opts.PrimaryTimeout)
	defer cancel()
	return c.primary.Count(countCtx)
}

// resultCacheKey derives the cache key for a query. Limit is part of the
// key because the cached set is stored post-truncation.
func resultCacheKey(req SearchRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Query))
	h.Write([]byte{0})
	h.Write([]byte(req.SourceType))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", req.Limit)
	return "q:" + hex.EncodeToString(h.Sum(nil))
}

func resultIDs(results []memory.SearchResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
