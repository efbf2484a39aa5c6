package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestStore_Created(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)

	rr := postJSON(t, g.handleStore(), "/memory", `{"content": "The sky is blue", "sourceType": "fact"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp storeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Error("response id is empty")
	}
}

func TestStore_DuplicateReturnsSameID(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)

	first := postJSON(t, g.handleStore(), "/memory", `{"content": "The sky is blue"}`)
	second := postJSON(t, g.handleStore(), "/memory", `{"content": "  The sky is blue  "}`)

	var a, b storeResponse
	if err := json.NewDecoder(first.Body).Decode(&a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.NewDecoder(second.Body).Decode(&b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("duplicate store returned %q, want %q", b.ID, a.ID)
	}
}

func TestStore_BadRequests(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)

	oversized := `{"content": "x", "metadata": {"blob": "` + strings.Repeat("a", 9000) + `"}}`

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"content": `},
		{"empty content", `{"content": "   "}`},
		{"oversized metadata", oversized},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := postJSON(t, g.handleStore(), "/memory", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestStore_PrimaryDown(t *testing.T) {
	t.Parallel()

	g, b := newTestGateway(t)
	b.primary.FailWith = errors.New("disk on fire")

	rr := postJSON(t, g.handleStore(), "/memory", `{"content": "The sky is blue"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestStore_EmbedderDown(t *testing.T) {
	t.Parallel()

	g, b := newTestGateway(t)
	b.embedder.Err = errors.New("model not loaded")

	rr := postJSON(t, g.handleStore(), "/memory", `{"content": "The sky is blue"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSearch_OK(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	postJSON(t, g.handleStore(), "/memory", `{"content": "The sky is blue", "sourceType": "fact"}`)

	rr := postJSON(t, g.handleSearch(), "/memory/search", `{"query": "color of the sky", "limit": 1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	if resp.Results[0].Content != "The sky is blue" {
		t.Errorf("content = %q", resp.Results[0].Content)
	}
}

func TestSearch_ZeroLimitReturnsEmptyList(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	postJSON(t, g.handleStore(), "/memory", `{"content": "something"}`)

	rr := postJSON(t, g.handleSearch(), "/memory/search", `{"query": "something", "limit": 0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	// The results field must be present and empty, not null.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["results"]) != "[]" {
		t.Errorf("results = %s, want []", raw["results"])
	}
}

func TestSearch_BadRequests(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"query"`},
		{"empty query", `{"query": "  "}`},
		{"negative limit", `{"query": "x", "limit": -1}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := postJSON(t, g.handleSearch(), "/memory/search", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestSearch_PrimaryDown(t *testing.T) {
	t.Parallel()

	g, b := newTestGateway(t)
	b.primary.FailWith = errors.New("gone")

	rr := postJSON(t, g.handleSearch(), "/memory/search", `{"query": "anything"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestSearch_SourceTypeFilter(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	postJSON(t, g.handleStore(), "/memory", `{"content": "water the plants", "sourceType": "todo"}`)
	postJSON(t, g.handleStore(), "/memory", `{"content": "Paris is in France", "sourceType": "fact"}`)

	rr := postJSON(t, g.handleSearch(), "/memory/search", `{"query": "plants", "filters": {"sourceType": "todo"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, r := range resp.Results {
		if r.SourceType != "todo" {
			t.Errorf("result %q has source_type %q, want todo", r.ID, r.SourceType)
		}
	}
}
