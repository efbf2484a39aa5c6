package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mnemohq/mnemo/internal/session"
)

// dialWS serves the gateway's router on a test server and opens a client
// connection to /ws.
func dialWS(t *testing.T, g *Gateway) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, data []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func writeClient(t *testing.T, conn *websocket.Conn, msg session.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal client message: %v", err)
	}
	writeFrame(t, conn, data)
}

func readServer(t *testing.T, conn *websocket.Conn) session.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var msg session.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal server message %q: %v", data, err)
	}
	return msg
}

func TestWS_MalformedMessageKeepsSessionAlive(t *testing.T) {
	g, _ := newTestGateway(t)

	id, err := g.coord.Store(context.Background(), "The sky is blue today.", nil, "note")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	conn := dialWS(t, g)

	// Invalid JSON gets an error push, not a closed connection.
	writeFrame(t, conn, []byte("{not json"))
	if msg := readServer(t, conn); msg.Type != session.MsgError {
		t.Fatalf("after invalid JSON got %q, want %q", msg.Type, session.MsgError)
	}

	// Missing sessionId likewise.
	writeFrame(t, conn, []byte(`{"type":"subscribe"}`))
	msg := readServer(t, conn)
	if msg.Type != session.MsgError || !strings.Contains(msg.Error, "sessionId") {
		t.Fatalf("after missing sessionId got %+v", msg)
	}

	// The connection survived: a full subscribe/search round trip works.
	writeClient(t, conn, session.ClientMessage{Type: session.MsgSubscribe, SessionID: "s1"})

	// Unknown message types also only produce an error push.
	writeClient(t, conn, session.ClientMessage{Type: "bogus", SessionID: "s1"})
	msg = readServer(t, conn)
	if msg.Type != session.MsgError || !strings.Contains(msg.Error, "unknown") {
		t.Fatalf("after unknown type got %+v", msg)
	}

	writeClient(t, conn, session.ClientMessage{
		Type:      session.MsgSearch,
		SessionID: "s1",
		Query:     "color of the sky",
		Limit:     1,
	})
	msg = readServer(t, conn)
	if msg.Type != session.MsgSearchResults {
		t.Fatalf("got %q (%+v), want %q", msg.Type, msg, session.MsgSearchResults)
	}
	if msg.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", msg.SessionID)
	}
	if len(msg.Results) != 1 || msg.Results[0].ID != id {
		t.Errorf("Results = %+v, want the stored chunk %q", msg.Results, id)
	}
}

func TestWS_SearchWithoutSubscriptionReturnsError(t *testing.T) {
	g, _ := newTestGateway(t)
	conn := dialWS(t, g)

	writeClient(t, conn, session.ClientMessage{
		Type:      session.MsgSearch,
		SessionID: "ghost",
		Query:     "anything",
	})
	msg := readServer(t, conn)
	if msg.Type != session.MsgError || !strings.Contains(msg.Error, "not subscribed") {
		t.Fatalf("got %+v, want not-subscribed error", msg)
	}
}

func TestWS_SearchFailurePushesErrorAndKeepsSubscription(t *testing.T) {
	g, b := newTestGateway(t)

	id, err := g.coord.Store(context.Background(), "The sky is blue today.", nil, "note")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	conn := dialWS(t, g)
	writeClient(t, conn, session.ClientMessage{Type: session.MsgSubscribe, SessionID: "s1"})

	b.primary.FailWith = errors.New("disk on fire")
	writeClient(t, conn, session.ClientMessage{
		Type:      session.MsgSearch,
		SessionID: "s1",
		Query:     "color of the sky",
	})
	msg := readServer(t, conn)
	if msg.Type != session.MsgError {
		t.Fatalf("got %q, want %q", msg.Type, session.MsgError)
	}

	// The subscription outlives the failed search.
	b.primary.FailWith = nil
	writeClient(t, conn, session.ClientMessage{
		Type:      session.MsgSearch,
		SessionID: "s1",
		Query:     "color of the sky",
		Limit:     1,
	})
	msg = readServer(t, conn)
	if msg.Type != session.MsgSearchResults || len(msg.Results) != 1 || msg.Results[0].ID != id {
		t.Fatalf("got %+v, want the stored chunk %q", msg, id)
	}
}
