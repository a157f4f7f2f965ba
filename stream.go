package refreshkit

import (
	"errors"
	"net/http"
	"time"
)

// ConnState is the lifecycle state of a streaming connection.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Send while the connection is down.
	ErrNotConnected = errors.New("refreshkit: stream not connected")

	// ErrStreamExists is returned when connecting under a name already in use.
	ErrStreamExists = errors.New("refreshkit: stream name already connected")

	// ErrStreamClosed is returned by Send after the stream was closed.
	ErrStreamClosed = errors.New("refreshkit: stream closed")
)

// ReconnectPolicy governs automatic reconnection after an unexpected drop.
type ReconnectPolicy struct {
	Enabled bool

	// MaxAttempts bounds consecutive reconnect attempts; zero means 5.
	MaxAttempts int

	// Backoff spaces the attempts; the zero value means exponential from one
	// second.
	Backoff Backoff
}

// StreamConfig describes one streaming connection.
type StreamConfig struct {
	// Name identifies the connection within the client; it is also the
	// metrics label.
	Name string

	// URL is the ws:// or wss:// endpoint.
	URL string

	Header http.Header

	// HandshakeTimeout bounds the websocket dial; zero means 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each Send; zero means 10s.
	WriteTimeout time.Duration

	Reconnect ReconnectPolicy
}

func (cfg *StreamConfig) applyDefaults() {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect.MaxAttempts = 5
	}
	if cfg.Reconnect.Backoff.strategy == nil {
		cfg.Reconnect.Backoff = ExponentialBackoff(time.Second, 2)
	}
}

// StreamHandler receives connection lifecycle events and inbound messages.
// Callbacks run on the connection's read goroutine; do not block in them.
type StreamHandler interface {
	OnMessage(data []byte)
	OnConnect()
	OnDisconnect(err error)
}

// StreamCallbacks adapts plain functions to StreamHandler; nil fields are
// skipped.
type StreamCallbacks struct {
	Message    func(data []byte)
	Connect    func()
	Disconnect func(err error)
}

func (s StreamCallbacks) OnMessage(data []byte) {
	if s.Message != nil {
		s.Message(data)
	}
}

func (s StreamCallbacks) OnConnect() {
	if s.Connect != nil {
		s.Connect()
	}
}

func (s StreamCallbacks) OnDisconnect(err error) {
	if s.Disconnect != nil {
		s.Disconnect(err)
	}
}
