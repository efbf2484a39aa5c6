// Package ollama implements the embedder against an Ollama-compatible HTTP
// API (POST /api/embeddings). The model's dimensionality is fixed by config
// and every returned vector is checked against it.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.Embedder   = (*embedder)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "all-minilm"
	defaultDims    = 384
	defaultTimeout = 30 * time.Second
)

// Config holds the embedder module configuration.
type Config struct {
	// BaseURL points at the Ollama server. Defaults to localhost:11434.
	BaseURL string `yaml:"base_url"`

	// Model is the embedding model name. Defaults to all-minilm.
	Model string `yaml:"model"`

	// Dims is the model's output dimensionality. Defaults to 384.
	Dims int `yaml:"dims"`

	// Timeout bounds each embedding request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Dims <= 0 {
		c.Dims = defaultDims
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Module registers the embedder as the embedder.ollama service.
type Module struct {
	config   Config
	logger   *slog.Logger
	embedder *embedder
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "embedder.ollama",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("ollama: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	m.embedder = &embedder{
		baseURL: m.config.BaseURL,
		model:   m.config.Model,
		dims:    m.config.Dims,
		client:  &http.Client{Timeout: m.config.Timeout},
	}

	ctx.RegisterService("embedder.ollama", m.embedder)

	m.logger.Info("ollama embedder provisioned",
		"base_url", m.config.BaseURL,
		"model", m.config.Model,
		"dims", m.config.Dims,
	)
	return nil
}

// Validate implements core.Validator. Reachability is deliberately not
// checked here: Ollama may come up after the service, and the store path
// degrades to 503s until it does.
func (m *Module) Validate() error {
	if m.config.Dims <= 0 {
		return fmt.Errorf("ollama: dims must be positive, got %d", m.config.Dims)
	}
	return nil
}

// Embedder returns the embedder implementation.
func (m *Module) Embedder() memory.Embedder {
	return m.embedder
}

// embedder implements memory.Embedder over the Ollama HTTP API.
type embedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements memory.Embedder.
func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(b))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	if len(result.Embedding) != e.dims {
		return nil, fmt.Errorf("ollama: model returned %d dims, configured for %d", len(result.Embedding), e.dims)
	}
	return result.Embedding, nil
}

// Dims implements memory.Embedder.
func (e *embedder) Dims() int { return e.dims }
