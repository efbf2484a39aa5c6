package session

import "github.com/mnemohq/mnemo/internal/memory"

// MessageType identifies the kind of WebSocket message exchanged with a
// subscribed client.
type MessageType string

// Client-to-server and server-to-client message types.
const (
	MsgSubscribe     MessageType = "subscribe"
	MsgUnsubscribe   MessageType = "unsubscribe"
	MsgSearch        MessageType = "search"
	MsgSearchResults MessageType = "search_results"
	MsgError         MessageType = "error"
)

// SearchFilters narrows a subscription search, mirroring the HTTP search
// request shape.
type SearchFilters struct {
	SourceType string `json:"sourceType,omitempty"`
}

// ClientMessage is the wire format for messages received from a client.
type ClientMessage struct {
	Type      MessageType   `json:"type"`
	SessionID string        `json:"sessionId"`
	Query     string        `json:"query,omitempty"`
	Filters   SearchFilters `json:"filters,omitempty"`
	Limit     int           `json:"limit,omitempty"`
}

// ServerMessage is the wire format for messages pushed to a client.
type ServerMessage struct {
	Type      MessageType           `json:"type"`
	SessionID string                `json:"sessionId,omitempty"`
	Results   []memory.SearchResult `json:"results,omitempty"`
	Error     string                `json:"error,omitempty"`
}
