package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/mnemohq/mnemo/internal/coordinator"
	"github.com/mnemohq/mnemo/internal/session"
)

// wsConn tracks one WebSocket connection and the subscriptions it opened.
// Push channels from the hub are pumped onto the connection by one goroutine
// per subscription; writeMu serializes their writes with the read loop's
// error replies.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]struct{}
	pumps    sync.WaitGroup
}

// handleWebSocket runs the subscription protocol for one client connection:
// read loop dispatching subscribe/unsubscribe/search, with results pushed
// back asynchronously by the session hub.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}

	c := &wsConn{
		conn:     conn,
		sessions: make(map[string]struct{}),
	}

	g.readLoop(r.Context(), c)

	// Peer gone: release every subscription this connection opened, which
	// also cancels its in-flight searches, then wait for the pumps to drain.
	c.mu.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		g.hub.Unsubscribe(id)
	}
	c.pumps.Wait()

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (g *Gateway) readLoop(ctx context.Context, c *wsConn) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg session.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.writeMessage(ctx, c, session.ServerMessage{
				Type:  session.MsgError,
				Error: "invalid message format",
			})
			continue
		}

		if msg.SessionID == "" {
			g.writeMessage(ctx, c, session.ServerMessage{
				Type:  session.MsgError,
				Error: "sessionId is required",
			})
			continue
		}

		switch msg.Type {
		case session.MsgSubscribe:
			g.handleSubscribe(ctx, c, msg.SessionID)

		case session.MsgUnsubscribe:
			c.mu.Lock()
			delete(c.sessions, msg.SessionID)
			c.mu.Unlock()
			g.hub.Unsubscribe(msg.SessionID)

		case session.MsgSearch:
			c.mu.Lock()
			_, subscribed := c.sessions[msg.SessionID]
			c.mu.Unlock()
			if !subscribed {
				g.writeMessage(ctx, c, session.ServerMessage{
					Type:      session.MsgError,
					SessionID: msg.SessionID,
					Error:     "session is not subscribed",
				})
				continue
			}
			limit := msg.Limit
			if limit <= 0 {
				limit = g.defaultLimit
			}
			if limit <= 0 {
				limit = defaultSearchLimit
			}
			g.hub.HandleSearch(msg.SessionID, coordinator.SearchRequest{
				Query:      msg.Query,
				SourceType: msg.Filters.SourceType,
				Limit:      limit,
			})

		default:
			g.writeMessage(ctx, c, session.ServerMessage{
				Type:      session.MsgError,
				SessionID: msg.SessionID,
				Error:     "unknown message type",
			})
		}
	}
}

// handleSubscribe opens (or replaces) a subscription and starts the pump
// goroutine that forwards hub pushes onto the connection.
func (g *Gateway) handleSubscribe(ctx context.Context, c *wsConn, sessionID string) {
	ch, err := g.hub.Subscribe(sessionID)
	if err != nil {
		g.writeMessage(ctx, c, session.ServerMessage{
			Type:      session.MsgError,
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return
	}

	c.mu.Lock()
	c.sessions[sessionID] = struct{}{}
	c.mu.Unlock()

	c.pumps.Add(1)
	go func() {
		defer c.pumps.Done()
		// The channel closes when the subscription is replaced or released.
		for msg := range ch {
			g.writeMessage(ctx, c, msg)
		}
	}()
}

func (g *Gateway) writeMessage(ctx context.Context, c *wsConn, msg session.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("marshal server message failed", "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		g.logger.Warn("websocket write failed", "error", err)
	}
}
