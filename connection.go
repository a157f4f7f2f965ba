package refreshkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnManager owns the client's streaming connections, keyed by name.
type ConnManager struct {
	logger  Logger
	metrics *MetricsCollector
	debug   *DebugConfig
	dialer  *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*Conn
}

func newConnManager(logger Logger, metrics *MetricsCollector, debug *DebugConfig) *ConnManager {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ConnManager{
		logger:  logger,
		metrics: metrics,
		debug:   debug,
		dialer:  websocket.DefaultDialer,
		conns:   make(map[string]*Conn),
	}
}

// log returns the logger for stream lifecycle events, honoring the same
// debug gating the request path uses.
func (m *ConnManager) log() Logger {
	if m.debug != nil && m.debug.Enabled && m.debug.LogStream {
		return m.logger
	}
	return nopLogger{}
}

// Connect dials a new streaming connection. The name must be unused.
func (m *ConnManager) Connect(ctx context.Context, cfg StreamConfig, handler StreamHandler) (*Conn, error) {
	cfg.applyDefaults()
	if cfg.Name == "" {
		return nil, fmt.Errorf("refreshkit: stream config requires a name")
	}
	if handler == nil {
		handler = StreamCallbacks{}
	}

	m.mu.Lock()
	if _, exists := m.conns[cfg.Name]; exists {
		m.mu.Unlock()
		return nil, ErrStreamExists
	}
	conn := &Conn{
		cfg:     cfg,
		handler: handler,
		manager: m,
		done:    make(chan struct{}),
	}
	m.conns[cfg.Name] = conn
	m.mu.Unlock()

	if err := conn.dial(ctx); err != nil {
		m.removeConn(conn)
		return nil, err
	}
	return conn, nil
}

// Disconnect closes the named connection. Disconnecting an unknown or
// already-closed name is a no-op.
func (m *ConnManager) Disconnect(name string) error {
	m.mu.Lock()
	conn, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Get returns the named connection, if present.
func (m *ConnManager) Get(name string) (*Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[name]
	return conn, ok
}

// CloseAll closes every connection; used on client shutdown.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*Conn)
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// removeConn unregisters conn, but only while it still owns its name; a
// replacement registered under the same name is left alone.
func (m *ConnManager) removeConn(conn *Conn) {
	m.mu.Lock()
	if cur, ok := m.conns[conn.cfg.Name]; ok && cur == conn {
		delete(m.conns, conn.cfg.Name)
	}
	m.mu.Unlock()
}

// Conn is one streaming connection. It reconnects itself after unexpected
// drops according to its ReconnectPolicy; deliberate Close never reconnects.
type Conn struct {
	cfg     StreamConfig
	handler StreamHandler
	manager *ConnManager

	mu         sync.Mutex
	ws         *websocket.Conn
	state      ConnState
	reconnects int
	closed     bool

	done chan struct{}
}

// dial establishes the websocket and starts the read loop.
func (c *Conn) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrStreamClosed
	}
	c.state = ConnConnecting
	c.mu.Unlock()

	dialer := *c.manager.dialer
	dialer.HandshakeTimeout = c.cfg.HandshakeTimeout
	ws, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.setState(ConnDisconnected)
		return fmt.Errorf("refreshkit: dialing stream %q: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	if c.closed {
		// Close raced the handshake; the fresh socket must not be installed.
		c.mu.Unlock()
		ws.Close()
		return ErrStreamClosed
	}
	c.ws = ws
	c.state = ConnConnected
	c.mu.Unlock()

	c.manager.log().Info("stream connected", "stream", c.cfg.Name, "url", c.cfg.URL)
	c.handler.OnConnect()
	go c.readLoop(ws)
	return nil
}

// readLoop delivers inbound messages until the connection drops, then hands
// off to the reconnect loop.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.ws = nil
			c.state = ConnDisconnected
			c.mu.Unlock()

			c.handler.OnDisconnect(err)
			if closed {
				return
			}
			c.manager.log().Warn("stream dropped", "stream", c.cfg.Name, "error", err)
			if c.cfg.Reconnect.Enabled {
				go c.reconnectLoop()
			} else {
				c.manager.removeConn(c)
			}
			return
		}
		c.handler.OnMessage(data)
	}
}

// reconnectLoop retries the dial with backoff until it succeeds, the
// connection is closed, or the attempt budget is exhausted.
func (c *Conn) reconnectLoop() {
	for attempt := 0; attempt < c.cfg.Reconnect.MaxAttempts; attempt++ {
		delay := c.cfg.Reconnect.Backoff.Delay(attempt)
		select {
		case <-time.After(delay):
		case <-c.done:
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnects++
		c.mu.Unlock()
		c.manager.metrics.RecordStreamReconnect(c.cfg.Name)
		c.manager.log().Info("stream reconnecting",
			"stream", c.cfg.Name, "attempt", attempt+1, "maxAttempts", c.cfg.Reconnect.MaxAttempts)

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			return
		}
		if errors.Is(err, ErrStreamClosed) {
			return
		}
		c.manager.log().Warn("stream reconnect failed", "stream", c.cfg.Name, "error", err)
	}

	c.manager.log().Error("stream reconnect attempts exhausted", "stream", c.cfg.Name)
	c.manager.removeConn(c)
}

// Send writes a text message, bounded by the configured write timeout.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrStreamClosed
	}
	if c.ws == nil || c.state != ConnConnected {
		return ErrNotConnected
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = ConnDisconnected
	ws := c.ws
	c.ws = nil
	close(c.done)
	c.mu.Unlock()

	c.manager.removeConn(c)

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return ws.Close()
	}
	return nil
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnects returns how many reconnect attempts this connection has made.
func (c *Conn) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ConnectStream opens a named streaming connection through the client.
func (c *Client) ConnectStream(ctx context.Context, cfg StreamConfig, handler StreamHandler) (*Conn, error) {
	return c.streams.Connect(ctx, cfg, handler)
}

// DisconnectStream closes a named streaming connection; unknown names are a
// no-op.
func (c *Client) DisconnectStream(name string) error {
	return c.streams.Disconnect(name)
}

// Stream returns the named streaming connection, if present.
func (c *Client) Stream(name string) (*Conn, bool) {
	return c.streams.Get(name)
}

// Close shuts down the client's streaming connections. The HTTP side needs
// no teardown.
func (c *Client) Close() {
	c.streams.CloseAll()
}
