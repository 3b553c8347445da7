package voltgo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testToken = "test-token"

// gatewayScript drives one accepted connection of the fake gateway. The
// attempt counter starts at 1 and increments per (re)connect.
type gatewayScript func(t *testing.T, conn *websocket.Conn, attempt int)

func newFakeGateway(t *testing.T, script gatewayScript) (string, *atomic.Int32) {
	t.Helper()

	var attempts atomic.Int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(t, conn, int(attempts.Add(1)))
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http"), &attempts
}

func expectAuthFrame(t *testing.T, conn *websocket.Conn) bool {
	t.Helper()

	var frame wireAuthenticate
	if err := conn.ReadJSON(&frame); err != nil {
		t.Errorf("read authentication frame: %v", err)
		return false
	}
	if frame.Type != "Authenticate" || frame.Token != testToken {
		t.Errorf("authentication frame = %+v", frame)
		return false
	}

	return true
}

// discardFrames consumes inbound frames until the peer disconnects, keeping
// the scripted connection alive without acknowledging anything.
func discardFrames(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func startGateway(ctx context.Context, g *gatewayConn) <-chan error {
	runErr := make(chan error, 1)
	go func() {
		runErr <- g.run(ctx)
	}()

	return runErr
}

func TestGatewayHandshakeAndTypedDispatch(t *testing.T) {
	t.Parallel()

	url, attempts := newFakeGateway(t, func(t *testing.T, conn *websocket.Conn, attempt int) {
		if !expectAuthFrame(t, conn) {
			return
		}
		conn.WriteJSON(map[string]string{"type": "Authenticated"})
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"type": "Ready",
			"users": [{"_id": "user-1", "username": "alice"}],
			"channels": [{"_id": "chan-1", "channel_type": "TextChannel", "name": "general"}]
		}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"type": "Message",
			"_id": "msg-1",
			"channel": "chan-1",
			"author": "user-1",
			"content": "hello"
		}`))
		discardFrames(conn)
	})

	store := NewStore(10)
	d := newDispatcher(testLogger())
	messages := make(chan *Message, 1)
	d.listen(string(EventMessage), func(ctx context.Context, event Event) error {
		messages <- event.(*MessageEvent).Message
		return nil
	})

	g := newGatewayConn(url, testToken, store, d, testLogger(), time.Minute, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := startGateway(ctx, g)

	select {
	case message := <-messages:
		if message.Content != "hello" {
			t.Fatalf("content = %q, want hello", message.Content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message event never dispatched")
	}

	if got := g.State(); got != StateReady {
		t.Fatalf("state = %s, want %s", got, StateReady)
	}
	if _, exists := store.Message("msg-1"); !exists {
		t.Fatal("message not cached")
	}
	if _, exists := store.User("user-1"); !exists {
		t.Fatal("ready snapshot not cached")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("connection attempts = %d, want 1", got)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if got := g.State(); got != StateClosed {
		t.Fatalf("state after run = %s, want %s", got, StateClosed)
	}
	if err := d.drain(context.Background()); err != nil {
		t.Fatalf("drain error = %v", err)
	}
}

func TestGatewayAuthRejectionIsFatal(t *testing.T) {
	t.Parallel()

	url, attempts := newFakeGateway(t, func(t *testing.T, conn *websocket.Conn, attempt int) {
		if !expectAuthFrame(t, conn) {
			return
		}
		conn.WriteJSON(wireError{Type: "Error", Error: "InvalidSession"})
		discardFrames(conn)
	})

	g := newGatewayConn(url, testToken, NewStore(10), newDispatcher(testLogger()), testLogger(), time.Minute, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := <-startGateway(ctx, g)
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("run error = %v, want ErrAuthRejected", err)
	}
	if !strings.Contains(err.Error(), "InvalidSession") {
		t.Fatalf("run error %q should carry the service reason", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("connection attempts = %d, want 1 (no reconnect)", got)
	}
}

func TestGatewayReconnectRetainsCache(t *testing.T) {
	t.Parallel()

	url, attempts := newFakeGateway(t, func(t *testing.T, conn *websocket.Conn, attempt int) {
		if !expectAuthFrame(t, conn) {
			return
		}
		conn.WriteJSON(map[string]string{"type": "Authenticated"})
		if attempt == 1 {
			conn.WriteMessage(websocket.TextMessage, []byte(`{
				"type": "Message",
				"_id": "msg-1",
				"channel": "chan-1",
				"author": "user-1",
				"content": "before the gap"
			}`))
			// Drop the connection to force a reconnect.
			return
		}
		discardFrames(conn)
	})

	store := NewStore(10)
	d := newDispatcher(testLogger())
	authed := make(chan struct{}, 4)
	d.listenRaw("Authenticated", func(ctx context.Context, payload []byte) error {
		authed <- struct{}{}
		return nil
	})

	g := newGatewayConn(url, testToken, store, d, testLogger(), time.Minute, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := startGateway(ctx, g)

	for i := 0; i < 2; i++ {
		select {
		case <-authed:
		case <-time.After(10 * time.Second):
			t.Fatalf("handshake %d never completed", i+1)
		}
	}

	if _, exists := store.Message("msg-1"); !exists {
		t.Fatal("cache entries from before the gap should survive a reconnect")
	}
	if got := attempts.Load(); got < 2 {
		t.Fatalf("connection attempts = %d, want at least 2", got)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if err := d.drain(context.Background()); err != nil {
		t.Fatalf("drain error = %v", err)
	}
}

func TestGatewayHeartbeatPingPong(t *testing.T) {
	t.Parallel()

	url, attempts := newFakeGateway(t, func(t *testing.T, conn *websocket.Conn, attempt int) {
		if !expectAuthFrame(t, conn) {
			return
		}
		conn.WriteJSON(map[string]string{"type": "Authenticated"})
		for {
			var frame wirePing
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type == "Ping" {
				conn.WriteJSON(wirePong{Type: "Pong", Data: frame.Data})
			}
		}
	})

	d := newDispatcher(testLogger())
	pongs := make(chan struct{}, 8)
	d.listenRaw("Pong", func(ctx context.Context, payload []byte) error {
		pongs <- struct{}{}
		return nil
	})

	g := newGatewayConn(url, testToken, NewStore(10), d, testLogger(), 25*time.Millisecond, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := startGateway(ctx, g)

	for i := 0; i < 2; i++ {
		select {
		case <-pongs:
		case <-time.After(5 * time.Second):
			t.Fatalf("heartbeat ack %d never arrived", i+1)
		}
	}

	if got := g.State(); got != StateReady {
		t.Fatalf("state = %s, want %s", got, StateReady)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("connection attempts = %d, want 1 (acked heartbeats)", got)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if err := d.drain(context.Background()); err != nil {
		t.Fatalf("drain error = %v", err)
	}
}

func TestGatewayReconnectExhaustion(t *testing.T) {
	t.Parallel()

	// Nothing listens on port 1, so every dial attempt fails immediately.
	g := newGatewayConn("ws://127.0.0.1:1/", testToken, NewStore(10), newDispatcher(testLogger()), testLogger(), time.Minute, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case err := <-startGateway(ctx, g):
		if !errors.Is(err, ErrReconnectExhausted) {
			t.Fatalf("run error = %v, want ErrReconnectExhausted", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("run never gave up")
	}

	if got := g.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
}

func TestGatewayMissedHeartbeatTriggersReconnect(t *testing.T) {
	t.Parallel()

	url, attempts := newFakeGateway(t, func(t *testing.T, conn *websocket.Conn, attempt int) {
		if !expectAuthFrame(t, conn) {
			return
		}
		conn.WriteJSON(map[string]string{"type": "Authenticated"})
		// Never acknowledge a ping: the session must fail into reconnect.
		discardFrames(conn)
	})

	d := newDispatcher(testLogger())
	authed := make(chan struct{}, 4)
	d.listenRaw("Authenticated", func(ctx context.Context, payload []byte) error {
		authed <- struct{}{}
		return nil
	})

	g := newGatewayConn(url, testToken, NewStore(10), d, testLogger(), 20*time.Millisecond, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := startGateway(ctx, g)

	for i := 0; i < 2; i++ {
		select {
		case <-authed:
		case <-time.After(10 * time.Second):
			t.Fatalf("handshake %d never completed", i+1)
		}
	}

	if got := attempts.Load(); got < 2 {
		t.Fatalf("connection attempts = %d, want at least 2", got)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if err := d.drain(context.Background()); err != nil {
		t.Fatalf("drain error = %v", err)
	}
}
