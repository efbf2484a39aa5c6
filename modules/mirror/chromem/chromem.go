// Package chromem implements the vector mirror on philippgille/chromem-go,
// a pure Go embedded vector database. Documents carry caller-supplied
// embeddings; chromem's cosine similarity is the backend-local score.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	chromemgo "github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.Mirror     = (*mirror)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
)

const defaultCollection = "chunks"

// Config holds the chromem mirror configuration.
type Config struct {
	// Path persists the index under this directory. Empty keeps the index
	// in memory only; it is rebuilt from scratch on restart, which is
	// acceptable for a best-effort mirror.
	Path string `yaml:"path"`

	// Collection names the chromem collection. Defaults to "chunks".
	Collection string `yaml:"collection"`
}

func (c *Config) defaults() {
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
}

// Module wires the chromem vector index into the mirror fan-out.
type Module struct {
	config Config
	logger *slog.Logger
	mirror *mirror
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "mirror.chromem",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("chromem: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	var (
		db  *chromemgo.DB
		err error
	)
	if m.config.Path != "" {
		db, err = chromemgo.NewPersistentDB(m.config.Path, false)
		if err != nil {
			return fmt.Errorf("chromem: open %s: %w", m.config.Path, err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	// The embedding func is never invoked: every document arrives with its
	// embedding already computed.
	col, err := db.GetOrCreateCollection(m.config.Collection, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem: collection %s: %w", m.config.Collection, err)
	}

	m.mirror = &mirror{col: col}
	ctx.RegisterService("mirror.chromem", m.mirror)

	m.logger.Info("chromem mirror provisioned",
		"collection", m.config.Collection,
		"persistent", m.config.Path != "",
	)
	return nil
}

// Mirror returns the mirror implementation.
func (m *Module) Mirror() memory.Mirror {
	return m.mirror
}

// mirror implements memory.Mirror on a chromem collection.
type mirror struct {
	col *chromemgo.Collection
}

// Name implements memory.Mirror.
func (c *mirror) Name() string { return "chromem" }

// Insert implements memory.Mirror. Chunk metadata is serialized into the
// document metadata so search results can carry it back.
func (c *mirror) Insert(ctx context.Context, chunk *memory.Chunk) error {
	meta := map[string]string{
		"content_hash": chunk.ContentHash,
		"source_type":  chunk.SourceType,
	}
	if len(chunk.Metadata) > 0 {
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("chromem: marshal metadata: %w", err)
		}
		meta["metadata_json"] = string(metaJSON)
	}

	err := c.col.AddDocument(ctx, chromemgo.Document{
		ID:        chunk.ID,
		Content:   chunk.Content,
		Embedding: chunk.Embedding,
		Metadata:  meta,
	})
	if err != nil {
		return fmt.Errorf("chromem: add document: %w", err)
	}
	return nil
}

// Delete implements memory.Mirror.
func (c *mirror) Delete(ctx context.Context, id string) error {
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem: delete %s: %w", id, err)
	}
	return nil
}

// Search implements memory.Mirror. chromem rejects result counts above the
// collection size, so the limit is clamped to it.
func (c *mirror) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	n := q.Limit
	if count := c.col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if q.SourceType != "" {
		where = map[string]string{"source_type": q.SourceType}
	}

	raw, err := c.col.QueryEmbedding(ctx, q.Embedding, n, where, nil)
	if err != nil {
		// Concurrent writes can invalidate the clamp; an insufficient-docs
		// complaint just means nothing to return yet.
		if strings.Contains(err.Error(), "nResults") {
			return nil, nil
		}
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	results := make([]memory.SearchResult, 0, len(raw))
	for _, r := range raw {
		sr := memory.SearchResult{
			ID:         r.ID,
			Content:    r.Content,
			Score:      float64(r.Similarity),
			SourceType: r.Metadata["source_type"],
			Backend:    c.Name(),
		}
		if metaJSON := r.Metadata["metadata_json"]; metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &sr.Metadata); err != nil {
				return nil, fmt.Errorf("chromem: unmarshal metadata for %s: %w", r.ID, err)
			}
		}
		results = append(results, sr)
	}
	return results, nil
}
