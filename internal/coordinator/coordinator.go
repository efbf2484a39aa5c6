// Package coordinator implements the hybrid memory coordinator: the fan-out
// writer that deduplicates and persists chunks across every configured
// backend, and the fan-out searcher that queries them concurrently and
// merges the ranked results.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemohq/mnemo/internal/memory"
)

// Coordinator owns the long-lived backend handles and fans operations out
// across them. All handles are injected; the coordinator holds no global
// state and is safe for concurrent use.
type Coordinator struct {
	primary  memory.Primary
	mirrors  []memory.Mirror
	cache    memory.Cache // nil when no cache module is configured
	embedder memory.Embedder
	opts     Options
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// New assembles a coordinator. primary and embedder are required; mirrors
// and cache are optional and their absence only degrades recall/latency.
func New(primary memory.Primary, mirrors []memory.Mirror, cache memory.Cache, embedder memory.Embedder, opts Options, logger *slog.Logger, metrics *Metrics) (*Coordinator, error) {
	if primary == nil {
		return nil, errors.New("coordinator: primary store is required")
	}
	if embedder == nil {
		return nil, errors.New("coordinator: embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	opts.defaults()

	return &Coordinator{
		primary:  primary,
		mirrors:  mirrors,
		cache:    cache,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("mnemo/coordinator"),
	}, nil
}

// Store normalizes and deduplicates content, embeds it, and dispatches the
// write to every backend concurrently. Only the primary write decides the
// outcome: mirror and cache writes are best-effort. Returns the chunk id —
// the existing one on a dedup hit, a fresh ULID otherwise.
func (c *Coordinator) Store(ctx context.Context, content string, metadata memory.Metadata, sourceType string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "memory.store")
	defer span.End()

	normalized := memory.Normalize(content)
	if normalized == "" {
		return "", memory.ErrInvalidContent
	}
	if err := metadata.Validate(c.opts.MaxMetadataBytes); err != nil {
		return "", err
	}

	hash := memory.HashContent(normalized)
	span.SetAttributes(attribute.String("memory.content_hash", hash))

	// A cached chunk under this hash means the primary already holds it
	// (entries are evicted when a write is compensated), so the dedup hit
	// resolves without a primary round trip.
	if c.cache != nil {
		if cached, ok := c.cache.GetChunk(hash); ok {
			c.metrics.DedupHits.Inc()
			span.SetAttributes(attribute.Bool("memory.dedup_hit", true))
			c.bumpAccessAsync(ctx, []string{cached.ID})
			return cached.ID, nil
		}
	}

	// Dedup check against the primary. The window between this lookup and
	// the insert below is racy; the primary's unique constraint on the
	// content hash is the real arbiter (handled after Insert).
	existing, err := c.getByHash(ctx, hash)
	switch {
	case err == nil:
		c.metrics.DedupHits.Inc()
		span.SetAttributes(attribute.Bool("memory.dedup_hit", true))
		c.bumpAccessAsync(ctx, []string{existing.ID})
		return existing.ID, nil
	case errors.Is(err, memory.ErrNotFound):
		// New content, continue to the write path.
	default:
		return "", fmt.Errorf("%w: dedup lookup: %v", memory.ErrPrimaryUnavailable, err)
	}

	embedding, err := c.embed(ctx, normalized)
	if err != nil {
		return "", err
	}

	chunk := &memory.Chunk{
		ID:          memory.NewID(),
		Content:     normalized,
		ContentHash: hash,
		Embedding:   embedding,
		Metadata:    metadata.Clone(),
		SourceType:  sourceType,
		CreatedAt:   time.Now().UTC(),
	}

	return c.fanOutWrite(ctx, chunk)
}

// fanOutWrite starts the primary, mirror, and cache writes concurrently,
// waits only for the primary, and compensates the best-effort writes if the
// primary fails so no chunk survives anywhere.
func (c *Coordinator) fanOutWrite(ctx context.Context, chunk *memory.Chunk) (string, error) {
	primaryDone := make(chan error, 1)
	go func() {
		insertCtx, cancel := context.WithTimeout(ctx, c.opts.PrimaryTimeout)
		defer cancel()
		primaryDone <- c.primary.Insert(insertCtx, chunk)
	}()

	// Best-effort writes detach from the caller's cancellation so an early
	// return does not abort them mid-flight; their own timeouts bound them.
	var mirrorsWG sync.WaitGroup
	for _, m := range c.mirrors {
		mirrorsWG.Add(1)
		go func(m memory.Mirror) {
			defer mirrorsWG.Done()
			mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.mirrorTimeout(m))
			defer cancel()
			if err := m.Insert(mirrorCtx, chunk); err != nil {
				c.metrics.BackendFailures.WithLabelValues(m.Name(), "write").Inc()
				c.logger.Warn("mirror write failed", "backend", m.Name(), "chunk", chunk.ID, "error", err)
			}
		}(m)
	}

	if c.cache != nil {
		mirrorsWG.Add(1)
		go func() {
			defer mirrorsWG.Done()
			c.cache.SetChunk(chunk)
		}()
	}

	err := <-primaryDone
	switch {
	case err == nil:
		c.metrics.Stores.Inc()
		return chunk.ID, nil

	case errors.Is(err, memory.ErrDuplicateContent):
		// Lost the dedup race to a concurrent identical store. The winner's
		// row is authoritative; roll back this chunk's best-effort copies
		// and return the winner's id.
		c.rollbackBestEffort(ctx, chunk, &mirrorsWG)
		winner, getErr := c.getByHash(ctx, chunk.ContentHash)
		if getErr != nil {
			return "", fmt.Errorf("%w: winner lookup after duplicate: %v", memory.ErrPrimaryUnavailable, getErr)
		}
		c.metrics.DedupHits.Inc()
		c.bumpAccessAsync(ctx, []string{winner.ID})
		return winner.ID, nil

	default:
		c.metrics.BackendFailures.WithLabelValues(c.primary.Name(), "write").Inc()
		c.rollbackBestEffort(ctx, chunk, &mirrorsWG)
		return "", fmt.Errorf("%w: %v", memory.ErrPrimaryUnavailable, err)
	}
}

// rollbackBestEffort waits for the in-flight mirror/cache writes (bounded by
// their own timeouts) and deletes whatever landed. Failures here are logged
// only — a stale mirror entry degrades ranking, not correctness.
func (c *Coordinator) rollbackBestEffort(ctx context.Context, chunk *memory.Chunk, wg *sync.WaitGroup) {
	wg.Wait()

	for _, m := range c.mirrors {
		deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.mirrorTimeout(m))
		if err := m.Delete(deleteCtx, chunk.ID); err != nil {
			c.logger.Warn("mirror rollback failed", "backend", m.Name(), "chunk", chunk.ID, "error", err)
		}
		cancel()
	}
	if c.cache != nil {
		c.cache.DropChunk(chunk.ContentHash)
	}
}

func (c *Coordinator) getByHash(ctx context.Context, hash string) (*memory.Chunk, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.opts.PrimaryTimeout)
	defer cancel()
	return c.primary.GetByHash(lookupCtx, hash)
}

func (c *Coordinator) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, c.opts.EmbedTimeout)
	defer cancel()

	embedding, err := c.embedder.Embed(embedCtx, text)
	if err != nil {
		if errors.Is(err, memory.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbeddingUnavailable, err)
	}
	if len(embedding) != c.embedder.Dims() {
		return nil, fmt.Errorf("%w: embedder returned %d dims, want %d",
			memory.ErrEmbeddingUnavailable, len(embedding), c.embedder.Dims())
	}
	return embedding, nil
}

// bumpAccessAsync updates access counters without blocking the caller.
// Lossy under race by design.
func (c *Coordinator) bumpAccessAsync(ctx context.Context, ids []string) {
	go func() {
		bumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.PrimaryTimeout)
		defer cancel()
		if err := c.primary.BumpAccess(bumpCtx, ids); err != nil {
			c.logger.Warn("access bump failed", "error", err)
		}
	}()
}

func (c *Coordinator) mirrorTimeout(m memory.Mirror) time.Duration {
	if d, ok := c.opts.MirrorTimeouts[m.Name()]; ok && d > 0 {
		return d
	}
	return c.opts.MirrorTimeout
}
