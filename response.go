package refreshkit

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the result of one logical request. It is produced exactly once
// per call and never mutated afterwards.
type Envelope[T any] struct {
	// Value is the decoded payload; nil when the response carried no body.
	Value *T

	// StatusCode is the HTTP status of the final attempt.
	StatusCode int

	// Header holds the response headers of the final attempt.
	Header http.Header

	// Elapsed is the wall time of the whole logical request, backoff
	// included.
	Elapsed time.Duration

	// FromCache reports whether the envelope was served from the response
	// cache without a transport attempt.
	FromCache bool

	// Attempts is the number of transport attempts consumed; zero for a
	// cache hit.
	Attempts int

	// TraceID is the opaque identifier assigned to this logical request.
	TraceID string

	// RawBody is the undecoded response body, kept for diagnostics.
	RawBody []byte
}

// IsSuccessful reports whether the final status was in the 2xx range.
func (e *Envelope[T]) IsSuccessful() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// rawResult is the orchestrator's internal, untyped view of a completed
// request; Execute projects it into a typed Envelope.
type rawResult struct {
	statusCode int
	header     http.Header
	body       []byte
	elapsed    time.Duration
	fromCache  bool
	attempts   int
	traceID    string
}

// Execute runs a request through the full reliability pipeline and decodes a
// successful JSON body into T. It is a package-level function because Go
// methods cannot carry type parameters.
func Execute[T any](ctx context.Context, c *Client, req Request) (*Envelope[T], error) {
	raw, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	env := &Envelope[T]{
		StatusCode: raw.statusCode,
		Header:     raw.header,
		Elapsed:    raw.elapsed,
		FromCache:  raw.fromCache,
		Attempts:   raw.attempts,
		TraceID:    raw.traceID,
		RawBody:    raw.body,
	}

	if env.IsSuccessful() && len(raw.body) > 0 {
		value := new(T)
		if err := json.Unmarshal(raw.body, value); err != nil {
			c.stats.reclassifyFailure()
			c.metrics.RecordError(string(KindSerialization), req.Method, "decode")
			return nil, &ClientError{
				Kind:      KindSerialization,
				Message:   "failed to decode response payload",
				Cause:     err,
				TraceID:   raw.traceID,
				Method:    req.Method,
				Timestamp: time.Now(),
			}
		}
		env.Value = value
	}

	return env, nil
}

// Do runs a request and returns the envelope with the body left as raw JSON.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope[json.RawMessage], error) {
	raw, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	env := &Envelope[json.RawMessage]{
		StatusCode: raw.statusCode,
		Header:     raw.header,
		Elapsed:    raw.elapsed,
		FromCache:  raw.fromCache,
		Attempts:   raw.attempts,
		TraceID:    raw.traceID,
		RawBody:    raw.body,
	}
	if len(raw.body) > 0 {
		msg := json.RawMessage(raw.body)
		env.Value = &msg
	}
	return env, nil
}
