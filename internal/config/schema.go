// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for mnemo.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite",
	// "mirror.chromem"). A backend missing from this map is simply not
	// loaded: for mirrors and the cache that means degraded recall, for
	// the primary store and the embedder it is a startup error (enforced
	// during wiring, not here).
	Modules map[string]yaml.Node `yaml:"modules"`

	// Memory holds coordinator-level settings shared across backends.
	Memory MemoryConfig `yaml:"memory"`
}

// MemoryConfig carries the knobs the fan-out coordinator needs: embedding
// geometry, overfetch, result limits, and the metadata size bound.
type MemoryConfig struct {
	// Dims is the embedding dimensionality every backend must agree on.
	Dims int `yaml:"dims"`

	// Overfetch multiplies the caller's limit on each backend search to
	// compensate for merge-time deduplication shrinking the pool.
	Overfetch int `yaml:"overfetch"`

	// DefaultLimit applies when a search request omits limit.
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit clamps caller-supplied limits.
	MaxLimit int `yaml:"max_limit"`

	// MaxMetadataBytes bounds the JSON-serialized metadata size per chunk.
	MaxMetadataBytes int `yaml:"max_metadata_bytes"`

	// PrimaryTimeout bounds every primary-store operation. Exceeding it
	// fails the whole call.
	PrimaryTimeout time.Duration `yaml:"primary_timeout"`

	// EmbedTimeout bounds embedding calls.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`

	// MirrorTimeout bounds best-effort mirror and cache operations; a
	// timeout counts as a failure.
	MirrorTimeout time.Duration `yaml:"mirror_timeout"`

	// MirrorTimeouts overrides MirrorTimeout per backend name
	// (e.g. "chromem", "fts").
	MirrorTimeouts map[string]time.Duration `yaml:"mirror_timeouts"`
}

func (c *MemoryConfig) defaults() {
	if c.Dims <= 0 {
		c.Dims = 384
	}
	if c.Overfetch <= 0 {
		c.Overfetch = 2
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.MaxMetadataBytes <= 0 {
		c.MaxMetadataBytes = 8192
	}
	if c.PrimaryTimeout <= 0 {
		c.PrimaryTimeout = 5 * time.Second
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 15 * time.Second
	}
	if c.MirrorTimeout <= 0 {
		c.MirrorTimeout = 3 * time.Second
	}
}
