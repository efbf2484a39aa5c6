// Package session coordinates WebSocket subscription sessions. Each session
// owns a push channel; search requests issued on a session run against the
// memory coordinator and their results are pushed back on that channel.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/memory"
)

// pushBuffer bounds how many undelivered messages a session may hold before
// further pushes are dropped.
const pushBuffer = 16

// ErrEmptySessionID is returned by Subscribe when no session id is given.
var ErrEmptySessionID = errors.New("session: session id is required")

// Searcher is the slice of the coordinator the hub needs.
type Searcher interface {
	Search(ctx context.Context, req coordinator.SearchRequest) ([]memory.SearchResult, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, req coordinator.SearchRequest) ([]memory.SearchResult, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, req coordinator.SearchRequest) ([]memory.SearchResult, error) {
	return f(ctx, req)
}

// session is one live subscription. The context is cancelled when the
// session is replaced or removed, which aborts its in-flight searches.
type session struct {
	id     string
	ch     chan ServerMessage
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub manages subscription sessions. Safe for concurrent use.
type Hub struct {
	searcher Searcher
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewHub builds a Hub pushing search results obtained from searcher.
func NewHub(searcher Searcher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		searcher: searcher,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Subscribe registers sessionID and returns its push channel. Subscribing an
// id that is already registered replaces the old subscription: the previous
// channel is closed and its in-flight searches are cancelled, so no message
// is ever delivered twice.
func (h *Hub) Subscribe(sessionID string) (<-chan ServerMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("session: hub is closed")
	}

	if old, ok := h.sessions[sessionID]; ok {
		old.cancel()
		close(old.ch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     sessionID,
		ch:     make(chan ServerMessage, pushBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	h.sessions[sessionID] = s

	h.logger.Debug("session subscribed", "session_id", sessionID)
	return s.ch, nil
}

// Unsubscribe removes sessionID, cancelling its in-flight searches and
// closing its push channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)
	s.cancel()
	close(s.ch)

	h.logger.Debug("session unsubscribed", "session_id", sessionID)
}

// HandleSearch runs a search on behalf of sessionID and pushes the outcome,
// either a search_results or an error message. It returns immediately; the
// search runs on the session's context so that unsubscribing aborts it.
// Requests for unknown sessions are dropped.
func (h *Hub) HandleSearch(sessionID string, req coordinator.SearchRequest) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}

	go func() {
		results, err := h.searcher.Search(s.ctx, req)
		if err != nil {
			h.logger.Warn("session search failed", "session_id", s.id, "error", err)
			h.push(s, ServerMessage{
				Type:      MsgError,
				SessionID: s.id,
				Error:     err.Error(),
			})
			return
		}
		h.push(s, ServerMessage{
			Type:      MsgSearchResults,
			SessionID: s.id,
			Results:   results,
		})
	}()
}

// PushError delivers an error message to sessionID without terminating the
// subscription. Used for malformed client frames.
func (h *Hub) PushError(sessionID, errMsg string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.push(s, ServerMessage{
		Type:      MsgError,
		SessionID: sessionID,
		Error:     errMsg,
	})
}

// push delivers msg to s if s is still the current subscription for its id.
// Results arriving after a resubscribe or unsubscribe are dropped, as is
// anything beyond a slow consumer's buffer.
func (h *Hub) push(s *session, msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.sessions[s.id]
	if !ok || current != s {
		return
	}

	select {
	case s.ch <- msg:
	default:
		h.logger.Warn("session push buffer full, dropping message",
			"session_id", s.id,
			"type", msg.Type,
		)
	}
}

// Len returns the number of active sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close cancels and removes every session. The hub accepts no new
// subscriptions afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, s := range h.sessions {
		s.cancel()
		close(s.ch)
		delete(h.sessions, id)
	}
}
