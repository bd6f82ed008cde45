package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/livequote/internal/eventloop"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type closeEvent struct {
	code   int
	reason string
}

// recordingHandler forwards transport events to channels.
type recordingHandler struct {
	opened   chan struct{}
	messages chan string
	errors   chan error
	closed   chan closeEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan struct{}, 1),
		messages: make(chan string, 100),
		errors:   make(chan error, 10),
		closed:   make(chan closeEvent, 10),
	}
}

func (h *recordingHandler) OnOpen()                         { h.opened <- struct{}{} }
func (h *recordingHandler) OnMessage(data []byte)           { h.messages <- string(data) }
func (h *recordingHandler) OnError(err error)               { h.errors <- err }
func (h *recordingHandler) OnClose(code int, reason string) { h.closed <- closeEvent{code, reason} }

func startLoop(t *testing.T) *eventloop.Runner {
	t.Helper()

	loop := eventloop.NewRunner(100, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

func waitOpen(t *testing.T, h *recordingHandler) {
	t.Helper()
	select {
	case <-h.opened:
	case err := <-h.errors:
		t.Fatalf("dial failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for open")
	}
}

func waitClose(t *testing.T, h *recordingHandler) closeEvent {
	t.Helper()
	select {
	case ev := <-h.closed:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
	return closeEvent{}
}

func TestDialer_OpenAndClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)

	waitOpen(t, h)

	if !conn.IsOpen() {
		t.Error("expected IsOpen to return true")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if conn.IsOpen() {
		t.Error("expected IsOpen to return false after Close")
	}

	waitClose(t, h)

	select {
	case err := <-h.errors:
		t.Errorf("unexpected error after local close: %v", err)
	default:
	}

	// Double close is a no-op
	if err := conn.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestDialer_Send(t *testing.T) {
	received := make(chan string, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		conn.ReadMessage()
	})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)
	defer conn.Close()

	waitOpen(t, h)

	if err := conn.Send([]byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "ping" {
			t.Errorf("server received %q, want ping", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to receive message")
	}
}

func TestDialer_SendNotConnected(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)
	conn.Close()

	if err := conn.Send([]byte("ping")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestDialer_Messages(t *testing.T) {
	frames := []string{
		`{"symbol":"AAPL","price":101.5}`,
		`{"symbol":"AAPL","price":102}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		conn.ReadMessage()
	})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)
	defer conn.Close()

	waitOpen(t, h)

	for i, want := range frames {
		select {
		case got := <-h.messages:
			if got != want {
				t.Errorf("message %d = %q, want %q", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for message %d", i)
		}
	}
}

func TestDialer_ServerClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "restarting"),
		)
		time.Sleep(50 * time.Millisecond)
	})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)

	waitOpen(t, h)
	ev := waitClose(t, h)

	if ev.code != websocket.CloseGoingAway {
		t.Errorf("close code = %d, want %d", ev.code, websocket.CloseGoingAway)
	}
	if ev.reason != "restarting" {
		t.Errorf("close reason = %q, want restarting", ev.reason)
	}
	if conn.IsOpen() {
		t.Error("expected IsOpen false after server close")
	}
}

func TestDialer_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)

	select {
	case <-h.errors:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dial error")
	}

	ev := waitClose(t, h)
	if ev.code != websocket.CloseAbnormalClosure {
		t.Errorf("close code = %d, want %d", ev.code, websocket.CloseAbnormalClosure)
	}

	select {
	case <-h.opened:
		t.Error("OnOpen delivered for a failed dial")
	default:
	}
}

func TestDialer_PingHandler(t *testing.T) {
	pongReceived := make(chan struct{}, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.SetPongHandler(func(string) error {
			pongReceived <- struct{}{}
			return nil
		})
		conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		conn.ReadMessage()
	})
	defer server.Close()

	loop := startLoop(t)
	h := newRecordingHandler()
	conn := NewDialer(DefaultClientConfig(), loop, nil).Dial(wsURL(server), h)
	defer conn.Close()

	waitOpen(t, h)

	select {
	case <-pongReceived:
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for pong")
	}
}

func TestDefaultConfigs(t *testing.T) {
	cc := DefaultClientConfig()
	if cc.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected HandshakeTimeout 10s, got %v", cc.HandshakeTimeout)
	}
	if cc.WriteTimeout != 5*time.Second {
		t.Errorf("expected WriteTimeout 5s, got %v", cc.WriteTimeout)
	}

	mc := DefaultManagerConfig()
	if mc.HeartbeatInterval != 10*time.Second {
		t.Errorf("expected HeartbeatInterval 10s, got %v", mc.HeartbeatInterval)
	}
	if mc.HeartbeatMessage != "ping" {
		t.Errorf("expected HeartbeatMessage ping, got %q", mc.HeartbeatMessage)
	}
	if mc.ReconnectDelay != 3*time.Second {
		t.Errorf("expected ReconnectDelay 3s, got %v", mc.ReconnectDelay)
	}
}
