package refreshkit

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the minimal structured logging interface the client emits to.
// Keys and values alternate in keysAndValues, slog-style.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger writes key=value lines through the standard log package.
type SimpleLogger struct {
	l *log.Logger
}

// NewSimpleLogger returns a logger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{l: log.New(os.Stderr, "refreshkit ", log.LstdFlags|log.Lmsgprefix)}
}

func (s *SimpleLogger) Debug(msg string, kv ...interface{}) { s.print("DEBUG", msg, kv) }
func (s *SimpleLogger) Info(msg string, kv ...interface{})  { s.print("INFO", msg, kv) }
func (s *SimpleLogger) Warn(msg string, kv ...interface{})  { s.print("WARN", msg, kv) }
func (s *SimpleLogger) Error(msg string, kv ...interface{}) { s.print("ERROR", msg, kv) }

func (s *SimpleLogger) print(level, msg string, kv []interface{}) {
	line := level + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	s.l.Println(line)
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger; a nil argument uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, kv ...interface{}) { s.l.Debug(msg, kv...) }
func (s *slogLogger) Info(msg string, kv ...interface{})  { s.l.Info(msg, kv...) }
func (s *slogLogger) Warn(msg string, kv ...interface{})  { s.l.Warn(msg, kv...) }
func (s *slogLogger) Error(msg string, kv ...interface{}) { s.l.Error(msg, kv...) }

// nopLogger discards everything; used where a Logger is required but none
// was configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// DebugConfig gates which request-path events are logged.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	LogRateLimit bool
	LogCircuit   bool
	LogStream    bool
	TraceIDGen   func() string
}

// DefaultDebugConfig enables all event categories with UUID trace IDs; pair
// it with WithDebug to turn logging on.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		LogRateLimit: true,
		LogCircuit:   true,
		LogStream:    true,
		TraceIDGen:   uuid.NewString,
	}
}
