// Package ristretto implements the ephemeral cache on dgraph-io/ristretto.
// It holds recently written chunks keyed by content hash and post-truncation
// search result sets keyed by query fingerprint, both with short TTLs. Loss
// is always acceptable; nothing here is a source of truth.
package ristretto

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.Cache      = (*cache)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const (
	defaultMaxCostMB   = 64
	defaultNumCounters = 1e6
	defaultChunkTTL    = 10 * time.Minute
	defaultResultsTTL  = 30 * time.Second
)

// Config holds the cache module configuration.
type Config struct {
	// MaxCostMB bounds the total cache size in megabytes. Defaults to 64.
	MaxCostMB int64 `yaml:"max_cost_mb"`

	// ChunkTTL is how long written chunks stay cached. Defaults to 10m.
	ChunkTTL time.Duration `yaml:"chunk_ttl"`

	// ResultsTTL is how long query result sets stay cached. Kept short so
	// new writes become visible quickly. Defaults to 30s.
	ResultsTTL time.Duration `yaml:"results_ttl"`
}

func (c *Config) defaults() {
	if c.MaxCostMB <= 0 {
		c.MaxCostMB = defaultMaxCostMB
	}
	if c.ChunkTTL <= 0 {
		c.ChunkTTL = defaultChunkTTL
	}
	if c.ResultsTTL <= 0 {
		c.ResultsTTL = defaultResultsTTL
	}
}

// Module wires the ristretto cache into the write fan-out and the search
// path.
type Module struct {
	config Config
	logger *slog.Logger
	cache  *cache
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cache.ristretto",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("ristretto: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     m.config.MaxCostMB << 20,
		BufferItems: 64,
	})
	if err != nil {
		return fmt.Errorf("ristretto: new cache: %w", err)
	}

	m.cache = &cache{
		inner:      inner,
		chunkTTL:   m.config.ChunkTTL,
		resultsTTL: m.config.ResultsTTL,
	}

	ctx.RegisterService("cache.ristretto", m.cache)

	m.logger.Info("ristretto cache provisioned",
		"max_cost_mb", m.config.MaxCostMB,
		"chunk_ttl", m.config.ChunkTTL,
		"results_ttl", m.config.ResultsTTL,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.cache != nil {
		m.cache.inner.Close()
	}
	return nil
}

// Cache returns the cache implementation.
func (m *Module) Cache() memory.Cache {
	return m.cache
}
