package refreshkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestStreamConnectAndReceive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte("hello"))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	connected := make(chan struct{})
	messages := make(chan string, 1)
	conn, err := client.ConnectStream(context.Background(), StreamConfig{
		Name: "quotes",
		URL:  wsURL(server),
	}, StreamCallbacks{
		Connect: func() { close(connected) },
		Message: func(data []byte) { messages <- string(data) },
	})
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	waitFor(t, connected, "connect callback")
	select {
	case msg := <-messages:
		if msg != "hello" {
			t.Errorf("message = %q, want hello", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	if conn.State() != ConnConnected {
		t.Errorf("state = %v, want connected", conn.State())
	}
}

func TestStreamSendEcho(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			ws.WriteMessage(mt, data)
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	messages := make(chan string, 1)
	conn, err := client.ConnectStream(context.Background(), StreamConfig{
		Name: "echo",
		URL:  wsURL(server),
	}, StreamCallbacks{
		Message: func(data []byte) { messages <- string(data) },
	})
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	if err := conn.Send([]byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case msg := <-messages:
		if msg != "ping" {
			t.Errorf("echo = %q, want ping", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}
}

func TestStreamDuplicateNameRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	cfg := StreamConfig{Name: "dup", URL: wsURL(server)}
	if _, err := client.ConnectStream(context.Background(), cfg, nil); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	if _, err := client.ConnectStream(context.Background(), cfg, nil); err != ErrStreamExists {
		t.Errorf("second connect error = %v, want ErrStreamExists", err)
	}
}

func TestStreamDisconnectIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	conn, err := client.ConnectStream(context.Background(), StreamConfig{
		Name: "once",
		URL:  wsURL(server),
	}, nil)
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	if err := client.DisconnectStream("once"); err != nil {
		t.Errorf("first disconnect failed: %v", err)
	}
	if err := client.DisconnectStream("once"); err != nil {
		t.Errorf("second disconnect failed: %v", err)
	}
	if err := client.DisconnectStream("never-existed"); err != nil {
		t.Errorf("disconnecting an unknown stream failed: %v", err)
	}

	if err := conn.Send([]byte("x")); err != ErrStreamClosed {
		t.Errorf("Send after close = %v, want ErrStreamClosed", err)
	}
	if _, ok := client.Stream("once"); ok {
		t.Error("disconnected stream still registered")
	}
}

func TestStreamReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if conns.Add(1) == 1 {
			// Kill the first connection to force a reconnect.
			ws.Close()
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte("back"))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	dropped := make(chan struct{}, 4)
	messages := make(chan string, 1)
	conn, err := client.ConnectStream(context.Background(), StreamConfig{
		Name: "flaky",
		URL:  wsURL(server),
		Reconnect: ReconnectPolicy{
			Enabled:     true,
			MaxAttempts: 5,
			Backoff:     FixedBackoff(10 * time.Millisecond),
		},
	}, StreamCallbacks{
		Message:    func(data []byte) { messages <- string(data) },
		Disconnect: func(error) { dropped <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	waitFor(t, dropped, "disconnect callback")

	select {
	case msg := <-messages:
		if msg != "back" {
			t.Errorf("message after reconnect = %q, want back", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message after reconnect")
	}
	if conn.Reconnects() < 1 {
		t.Errorf("Reconnects = %d, want at least 1", conn.Reconnects())
	}
	if conn.State() != ConnConnected {
		t.Errorf("state = %v after reconnect, want connected", conn.State())
	}
}

func TestStreamDialFailure(t *testing.T) {
	client := New()
	t.Cleanup(client.Close)

	_, err := client.ConnectStream(context.Background(), StreamConfig{
		Name:             "nowhere",
		URL:              "ws://127.0.0.1:1/ws",
		HandshakeTimeout: 200 * time.Millisecond,
	}, nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if _, ok := client.Stream("nowhere"); ok {
		t.Error("failed connection left registered")
	}
}

func TestCloseDuringReconnectStaysClosed(t *testing.T) {
	var conns atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) == 1 {
			ws, err := testUpgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			ws.Close()
			return
		}
		// Stall the reconnect handshake until the test has called Close.
		<-release
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	conn, err := client.ConnectStream(context.Background(), StreamConfig{
		Name: "racy",
		URL:  wsURL(server),
		Reconnect: ReconnectPolicy{
			Enabled:     true,
			MaxAttempts: 3,
			Backoff:     FixedBackoff(5 * time.Millisecond),
		},
	}, nil)
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	// Wait for the reconnect dial to be in flight, stalled server-side.
	deadline := time.Now().Add(2 * time.Second)
	for conns.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reconnect dial never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	close(release)

	// Give the completed handshake time to (wrongly) install the socket.
	time.Sleep(100 * time.Millisecond)

	if got := conn.State(); got != ConnDisconnected {
		t.Errorf("state = %v after Close, want disconnected", got)
	}
	if err := conn.Send([]byte("x")); err != ErrStreamClosed {
		t.Errorf("Send after Close = %v, want ErrStreamClosed", err)
	}
	if _, ok := client.Stream("racy"); ok {
		t.Error("closed connection still registered")
	}
}

func TestConnCloseUnregistersFromManager(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	client := New()
	t.Cleanup(client.Close)

	cfg := StreamConfig{Name: "reused", URL: wsURL(server)}
	conn, err := client.ConnectStream(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := client.Stream("reused"); ok {
		t.Error("directly closed connection still registered")
	}

	// The name must be free for a fresh connection.
	if _, err := client.ConnectStream(context.Background(), cfg, nil); err != nil {
		t.Errorf("reconnecting under a freed name failed: %v", err)
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func (l *recordingLogger) Debug(msg string, kv ...interface{}) { l.record(msg) }
func (l *recordingLogger) Info(msg string, kv ...interface{})  { l.record(msg) }
func (l *recordingLogger) Warn(msg string, kv ...interface{})  { l.record(msg) }
func (l *recordingLogger) Error(msg string, kv ...interface{}) { l.record(msg) }

func TestStreamLoggingHonorsDebugGating(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	quiet := &recordingLogger{}
	silentClient := New(WithLogger(quiet))
	t.Cleanup(silentClient.Close)
	if _, err := silentClient.ConnectStream(context.Background(), StreamConfig{
		Name: "s", URL: wsURL(server),
	}, nil); err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}
	if quiet.has("stream connected") {
		t.Error("stream lifecycle logged with debug disabled")
	}

	loud := &recordingLogger{}
	debugClient := New(
		WithLogger(loud),
		WithDebugConfig(&DebugConfig{Enabled: true, LogStream: true}),
	)
	t.Cleanup(debugClient.Close)
	if _, err := debugClient.ConnectStream(context.Background(), StreamConfig{
		Name: "s", URL: wsURL(server),
	}, nil); err != nil {
		t.Fatalf("ConnectStream failed: %v", err)
	}
	if !loud.has("stream connected") {
		t.Error("stream lifecycle not logged with LogStream enabled")
	}
}
