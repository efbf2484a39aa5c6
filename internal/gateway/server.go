package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/memory", g.handleStore())
	r.Post("/memory/search", g.handleSearch())

	r.Get("/healthz", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	if g.hub != nil {
		r.Get("/ws", g.handleWebSocket)
	}

	return r
}
