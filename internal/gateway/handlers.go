package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/memory"
)

// defaultSearchLimit applies when a search request omits the limit field
// and the wiring layer registered no memory.default_limit service.
const defaultSearchLimit = 10

type storeRequest struct {
	Content    string          `json:"content"`
	Metadata   memory.Metadata `json:"metadata,omitempty"`
	SourceType string          `json:"sourceType,omitempty"`
}

type storeResponse struct {
	ID string `json:"id"`
}

type searchFilters struct {
	SourceType string `json:"sourceType,omitempty"`
}

type searchRequest struct {
	Query   string        `json:"query"`
	Filters searchFilters `json:"filters,omitempty"`
	// Pointer so an omitted limit is distinguishable from an explicit 0.
	Limit *int `json:"limit,omitempty"`
}

type searchResponse struct {
	Results []memory.SearchResult `json:"results"`
}

// handleStore accepts a chunk of content and returns the id it is stored
// under, which is the existing id when the content deduplicates.
func (g *Gateway) handleStore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req storeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		id, err := g.coord.Store(r.Context(), req.Content, req.Metadata, req.SourceType)
		if err != nil {
			g.writeCoordinatorError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, storeResponse{ID: id})
	}
}

// handleSearch runs a fan-out search and returns the merged, ranked results.
func (g *Gateway) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		limit := g.defaultLimit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if req.Limit != nil {
			limit = *req.Limit
		}
		if limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must not be negative")
			return
		}

		results, err := g.coord.Search(r.Context(), coordinator.SearchRequest{
			Query:      req.Query,
			SourceType: req.Filters.SourceType,
			Limit:      limit,
		})
		if err != nil {
			g.writeCoordinatorError(w, err)
			return
		}

		if results == nil {
			results = []memory.SearchResult{}
		}
		writeJSON(w, http.StatusOK, searchResponse{Results: results})
	}
}

// writeCoordinatorError maps coordinator errors onto HTTP status codes.
// Caller errors are 400, dependency outages are 503; anything else is a 500
// with the detail kept out of the response body.
func (g *Gateway) writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrInvalidContent),
		errors.Is(err, memory.ErrMetadataTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrEmbeddingUnavailable),
		errors.Is(err, memory.ErrPrimaryUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		g.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
