package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mnemohq/mnemo/internal/config"
	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/mnemohq/mnemo/internal/session"
)

// mirrorServices lists the service names mirror modules register under,
// in merge-stable order.
var mirrorServices = []string{"mirror.chromem", "mirror.fts"}

// hubModule wraps the session hub so it participates in the App lifecycle.
// The gateway also closes the hub on its own Stop (Close is idempotent);
// this wrapper covers headless setups without a gateway module.
type hubModule struct {
	hub *session.Hub
}

func (m *hubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "session.hub"}
}

func (m *hubModule) Start() error { return nil }

func (m *hubModule) Stop(context.Context) error {
	m.hub.Close()
	return nil
}

// wireMemory assembles the coordinator and session hub from the services the
// backend modules registered during LoadModules, and publishes them for the
// gateway to discover. Must be called after LoadModules and before Start.
//
// The primary store and the embedder are hard requirements: without them no
// write can be made durable and no query can be embedded. Mirrors and the
// cache are optional; their absence only degrades recall and latency.
func wireMemory(app *core.App, appCtx *core.AppContext, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) error {
	svc, ok := appCtx.Service("store.primary")
	if !ok {
		return fmt.Errorf("wire: no primary store module configured (expected service %q)", "store.primary")
	}
	primary, ok := svc.(memory.Primary)
	if !ok {
		return fmt.Errorf("wire: service %q does not implement memory.Primary", "store.primary")
	}

	svc, ok = appCtx.Service("embedder.ollama")
	if !ok {
		return fmt.Errorf("wire: no embedder module configured (expected service %q)", "embedder.ollama")
	}
	embedder, ok := svc.(memory.Embedder)
	if !ok {
		return fmt.Errorf("wire: service %q does not implement memory.Embedder", "embedder.ollama")
	}

	// Every backend stores and compares vectors of the configured geometry;
	// a mismatched embedder would poison all of them.
	if dims := embedder.Dims(); dims != cfg.Memory.Dims {
		return fmt.Errorf("wire: embedder produces %d-dim vectors, config declares memory.dims=%d", dims, cfg.Memory.Dims)
	}

	var mirrors []memory.Mirror
	for _, name := range mirrorServices {
		svc, ok := appCtx.Service(name)
		if !ok {
			continue
		}
		m, ok := svc.(memory.Mirror)
		if !ok {
			return fmt.Errorf("wire: service %q does not implement memory.Mirror", name)
		}
		mirrors = append(mirrors, m)
		logger.Info("wire: mirror attached", "backend", m.Name())
	}
	if len(mirrors) == 0 {
		logger.Warn("wire: no mirrors configured, search recall limited to the primary store")
	}

	var cache memory.Cache
	if svc, ok := appCtx.Service("cache.ristretto"); ok {
		if c, ok := svc.(memory.Cache); ok {
			cache = c
			logger.Info("wire: cache attached", "backend", c.Name())
		}
	}

	coord, err := coordinator.New(primary, mirrors, cache, embedder,
		coordinator.Options{
			PrimaryTimeout:   cfg.Memory.PrimaryTimeout,
			EmbedTimeout:     cfg.Memory.EmbedTimeout,
			MirrorTimeout:    cfg.Memory.MirrorTimeout,
			MirrorTimeouts:   cfg.Memory.MirrorTimeouts,
			Overfetch:        cfg.Memory.Overfetch,
			MaxLimit:         cfg.Memory.MaxLimit,
			MaxMetadataBytes: cfg.Memory.MaxMetadataBytes,
		},
		logger,
		coordinator.NewMetrics(reg),
	)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}

	hub := session.NewHub(coord, logger)

	appCtx.RegisterService("memory.coordinator", coord)
	appCtx.RegisterService("memory.default_limit", cfg.Memory.DefaultLimit)
	appCtx.RegisterService("session.hub", hub)
	app.AppendModule("session.hub", &hubModule{hub: hub})

	logger.Info("wire: memory coordinator assembled",
		"primary", primary.Name(),
		"mirrors", len(mirrors),
		"cache", cache != nil,
		"dims", cfg.Memory.Dims,
	)
	return nil
}
