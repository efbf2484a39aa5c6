package gateway

import "net/http"

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"` // "healthy" or "unhealthy"
	Chunks int64  `json:"chunks,omitempty"`
}

// handleHealth reports primary store reachability. Mirror or cache outages
// never show up here; the service degrades but stays healthy.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.coord.Healthy(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
			return
		}

		resp := HealthResponse{Status: "healthy"}
		if n, err := g.coord.ChunkCount(r.Context()); err == nil {
			resp.Chunks = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
