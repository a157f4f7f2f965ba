package refreshkit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Middleware wraps the transport call; the chain runs in registration order
// around every attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper is the transport interface seen by middleware.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// maxResponseBytes bounds how much of a response body is read into memory.
const maxResponseBytes = 10 * 1024 * 1024

// Client is a resilient network client that layers retries, circuit
// breaking, rate limiting, caching, bounded-concurrency batching and
// streaming connections around the standard net/http Client. It is safe for
// concurrent use; construct one per upstream and inject it into consumers.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	timeout        time.Duration
	maxBodySize    int64
	defaultHeaders map[string]string
	compression    bool
	available      func() bool

	retryPolicy *RetryPolicy
	rateLimiter *RateLimiter
	breaker     *CircuitBreaker
	cache       Cache
	cacheCfg    CacheConfig

	middleware []Middleware
	metrics    *MetricsCollector
	stats      *clientStats
	logger     Logger
	debug      *DebugConfig
	traceIDGen func() string

	streams *ConnManager

	validationError error
}

// New constructs a Client from functional options. Configuration is
// validated best effort; call IsValid / ValidationError to inspect errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:     &http.Client{},
		timeout:        30 * time.Second,
		maxBodySize:    10 * 1024 * 1024,
		defaultHeaders: map[string]string{},
		compression:    true,
		retryPolicy:    DefaultRetryPolicy(),
		breaker:        NewCircuitBreaker(CircuitBreakerConfig{}),
		middleware:     []Middleware{},
		stats:          &clientStats{},
		debug:          DefaultDebugConfig(),
		traceIDGen:     uuid.NewString,
	}

	for _, option := range options {
		option(client)
	}

	// Breaker trips and state are observable through the snapshot and the
	// Prometheus gauge; subscribers never influence admission.
	if client.breaker != nil {
		client.breaker.Subscribe(func(from, to CircuitState) {
			if to == StateOpen {
				client.stats.circuitBreakerTrips.Add(1)
			}
			client.metrics.RecordCircuitBreakerState("default", to)
			if client.debug != nil && client.debug.Enabled && client.debug.LogCircuit && client.logger != nil {
				client.logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			}
		})
	}

	client.streams = newConnManager(client.logger, client.metrics, client.debug)

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// InvalidateCache removes the given keys from the response cache, or clears
// it entirely when called with no keys.
func (c *Client) InvalidateCache(keys ...string) {
	if c.cache == nil {
		return
	}
	if len(keys) == 0 {
		c.cache.Clear()
		return
	}
	for _, k := range keys {
		c.cache.Invalidate(k)
	}
}

// execute is the orchestrator: validation, admission gates, cache lookup,
// then the bounded attempt loop. Metrics are updated exactly once per
// logical call; the circuit breaker exactly once per transport attempt.
func (c *Client) execute(ctx context.Context, req Request) (*rawResult, error) {
	start := time.Now()
	traceID := c.traceIDGen()

	if c.validationError != nil {
		return nil, c.failFast(&ClientError{
			Kind:    KindValidation,
			Message: "client configuration is invalid",
			Cause:   c.validationError,
		}, req, traceID, start, "unknown")
	}

	if c.available != nil && !c.available() {
		return nil, c.failFast(&ClientError{
			Kind:    KindNetworkUnavailable,
			Message: "transport is unavailable",
		}, req, traceID, start, "unknown")
	}

	if c.maxBodySize > 0 && int64(len(req.Body)) > c.maxBodySize {
		return nil, c.failFast(&ClientError{
			Kind:    KindRequestTooLarge,
			Message: "request body exceeds configured maximum size",
		}, req, traceID, start, "unknown")
	}

	if err := req.validate(); err != nil {
		return nil, c.failFast(err.(*ClientError), req, traceID, start, "unknown")
	}

	fullURL, err := resolveURL(c.baseURL, req.Path)
	if err != nil {
		return nil, c.failFast(&ClientError{
			Kind:    KindInvalidRequest,
			Message: "request URL could not be resolved",
			Cause:   err,
		}, req, traceID, start, "unknown")
	}
	endpoint := endpointKey(fullURL)

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("starting request",
			"traceID", traceID, "method", req.Method, "url", fullURL,
			"priority", req.Priority.String())
	}

	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	if c.rateLimiter != nil && !c.rateLimiter.Admit(endpoint) {
		c.stats.rateLimitRejections.Add(1)
		c.metrics.RecordRateLimitRejection(endpoint)
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("rate limit exceeded", "traceID", traceID, "endpoint", endpoint)
		}
		return nil, c.failFast(&ClientError{
			Kind:    KindRateLimitExceeded,
			Message: "rate limit exceeded",
		}, req, traceID, start, endpoint)
	}

	if c.breaker != nil && !c.breaker.Admit() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogCircuit && c.logger != nil {
			c.logger.Warn("circuit breaker refused request",
				"traceID", traceID, "endpoint", endpoint, "state", c.breaker.State().String())
		}
		return nil, c.failFast(&ClientError{
			Kind:    KindCircuitBreakerOpen,
			Message: "circuit breaker is open",
		}, req, traceID, start, endpoint)
	}

	cacheEnabled, cacheTTL := c.effectiveCachePolicy(req)
	key := cacheKey(req.Method, fullURL, req.Header, c.cacheCfg.VaryHeaders)
	if cacheEnabled {
		if entry, found := c.cache.Get(key); found {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache hit", "traceID", traceID, "cacheKey", key)
			}
			c.stats.cacheHits.Add(1)
			c.metrics.RecordCacheHit(req.Method, endpoint)
			elapsed := time.Since(start)
			c.stats.recordOutcome(true, elapsed)
			c.metrics.RecordRequest(req.Method, endpoint, entry.StatusCode, elapsed)
			return &rawResult{
				statusCode: entry.StatusCode,
				header:     entry.Header.Clone(),
				body:       entry.Body,
				elapsed:    elapsed,
				fromCache:  true,
				attempts:   0,
				traceID:    traceID,
			}, nil
		}
		c.metrics.RecordCacheMiss(req.Method, endpoint)
	}

	policy := c.retryPolicy
	if req.Retry != nil {
		policy = req.Retry
	}
	effTimeout := c.timeout
	if req.Timeout > 0 {
		effTimeout = req.Timeout
	}

	var lastErr *ClientError
	attempts := 0
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(req.Method, endpoint, attempt)
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("retry attempt",
					"traceID", traceID, "attempt", attempt, "maxRetries", policy.MaxRetries,
					"endpoint", endpoint)
			}
		}
		attempts++

		res, attemptErr := c.attempt(ctx, req, fullURL, effTimeout, traceID)
		if attemptErr == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			if cacheEnabled && res.statusCode >= 200 && res.statusCode < 300 {
				c.cache.Set(key, &CacheEntry{
					Body:       res.body,
					StatusCode: res.statusCode,
					Header:     res.header.Clone(),
					ETag:       res.header.Get("ETag"),
				}, cacheTTL)
				c.metrics.RecordCacheSize("default", c.cache.Len())
				if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
					c.logger.Debug("response cached", "traceID", traceID, "cacheKey", key, "ttl", cacheTTL)
				}
			}
			elapsed := time.Since(start)
			c.stats.recordOutcome(true, elapsed)
			c.metrics.RecordRequest(req.Method, endpoint, res.statusCode, elapsed)
			res.elapsed = elapsed
			res.attempts = attempts
			res.traceID = traceID
			return res, nil
		}

		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		c.metrics.RecordError(string(attemptErr.Kind), req.Method, endpoint)
		lastErr = attemptErr

		delay, retry := policy.ShouldRetry(attemptErr, attempt)
		if !retry {
			break
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("scheduling retry",
				"traceID", traceID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = &ClientError{
				Kind:    KindTimeout,
				Message: "cancelled while waiting to retry",
				Cause:   ctx.Err(),
			}
			attempt = policy.MaxRetries // exit the loop
		}
	}

	if lastErr == nil {
		// MaxRetries below zero: the loop body never ran.
		lastErr = &ClientError{
			Kind:    KindRetryLimitExceeded,
			Message: "retry policy permitted no attempts",
		}
	}
	return nil, c.finishFailure(lastErr, req, traceID, start, endpoint, attempts, policy.MaxRetries)
}

// attempt performs a single transport call. The returned error always has
// StatusCode set for non-2xx responses.
func (c *Client) attempt(ctx context.Context, req Request, fullURL string, timeout time.Duration, traceID string) (*rawResult, *ClientError) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, &ClientError{Kind: KindInvalidRequest, Message: "building transport request failed", Cause: err}
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", defaultUserAgent)
	}
	if req.ContentType != "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if !c.compression {
		httpReq.Header.Set("Accept-Encoding", "identity")
	}
	httpReq.Header.Set("X-Trace-Id", traceID)

	resp, err := c.roundTrip(httpReq)
	if err != nil {
		kind := KindNetworkUnavailable
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		return nil, &ClientError{Kind: kind, Message: "transport call failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ClientError{
			Kind:       KindResponseProcessing,
			Message:    "reading response body failed",
			Cause:      err,
			StatusCode: resp.StatusCode,
		}
	}
	c.stats.bytesSent.Add(uint64(len(req.Body)))
	c.stats.bytesReceived.Add(uint64(len(body)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &rawResult{
			statusCode: resp.StatusCode,
			header:     resp.Header,
			body:       body,
		}, nil
	}

	msg := http.StatusText(resp.StatusCode)
	if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 256 {
		msg = s
	}
	return nil, &ClientError{
		Kind:       kindForStatus(resp.StatusCode),
		Message:    msg,
		StatusCode: resp.StatusCode,
	}
}

// roundTrip runs the middleware chain around the underlying http.Client.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}
	return current.RoundTrip(req)
}

// effectiveCachePolicy merges the client cache configuration with the
// per-request override. Only safe read methods are ever cached.
func (c *Client) effectiveCachePolicy(req Request) (bool, time.Duration) {
	if c.cache == nil || !cacheableMethod(req.Method) {
		return false, 0
	}
	enabled := c.cacheCfg.Enabled
	ttl := c.cacheCfg.DefaultTTL
	if req.Cache != nil {
		enabled = req.Cache.Enabled
		if req.Cache.TTL > 0 {
			ttl = req.Cache.TTL
		}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return enabled, ttl
}

// failFast finalizes a refusal that made no transport attempt.
func (c *Client) failFast(cerr *ClientError, req Request, traceID string, start time.Time, endpoint string) error {
	c.metrics.RecordError(string(cerr.Kind), req.Method, endpoint)
	return c.finishFailure(cerr, req, traceID, start, endpoint, 0, 0)
}

// finishFailure stamps trace context onto the error and records the logical
// call's failure exactly once.
func (c *Client) finishFailure(cerr *ClientError, req Request, traceID string, start time.Time, endpoint string, attempts, maxRetries int) error {
	elapsed := time.Since(start)
	cerr.TraceID = traceID
	cerr.Method = req.Method
	if cerr.URL == "" {
		cerr.URL = req.Path
	}
	cerr.Attempts = attempts
	cerr.MaxRetries = maxRetries
	cerr.Timestamp = time.Now()
	cerr.Duration = elapsed

	c.stats.recordOutcome(false, elapsed)
	c.metrics.RecordRequest(req.Method, endpoint, cerr.StatusCode, elapsed)
	return cerr
}
