// Package gateway provides the HTTP surface: memory store/search endpoints,
// health, metrics, and the WebSocket subscription endpoint. It binds to
// loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/session"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module — nothing imports
// it; its dependencies are resolved from the service registry at Start.
type Gateway struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
	server *http.Server

	// Resolved lazily at Start() via service registry.
	coord        *coordinator.Coordinator
	hub          *session.Hub
	defaultLimit int
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves the coordinator and session hub
// from the service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service("memory.coordinator")
	if !ok {
		return errors.New("gateway: memory.coordinator service not registered")
	}
	coord, ok := svc.(*coordinator.Coordinator)
	if !ok {
		return errors.New("gateway: memory.coordinator service has unexpected type")
	}
	g.coord = coord

	if svc, ok := g.appCtx.Service("session.hub"); ok {
		if hub, ok := svc.(*session.Hub); ok {
			g.hub = hub
		}
	}

	if svc, ok := g.appCtx.Service("memory.default_limit"); ok {
		if n, ok := svc.(int); ok && n > 0 {
			g.defaultLimit = n
		}
	}

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with the configured
// timeout; active subscription sessions are closed first so their push loops
// unwind before the listener goes away.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.hub != nil {
		g.hub.Close()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
