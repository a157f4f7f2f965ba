package refreshkit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Option configures a Client during construction.
type Option func(*Client)

// WithBaseURL sets the base URL relative request paths resolve against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxBodySize bounds the request body size; oversized requests are
// refused before any transport call. Zero disables the bound.
func WithMaxBodySize(limit int64) Option {
	return func(c *Client) {
		c.maxBodySize = limit
	}
}

// WithDefaultHeaders sets headers applied to every request. Per-request
// headers take precedence.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.defaultHeaders = headers
	}
}

// WithCompression toggles transparent response compression.
func WithCompression(enabled bool) Option {
	return func(c *Client) {
		c.compression = enabled
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithRateLimit enables the sliding-window rate limiter.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(cfg)
	}
}

// WithCircuitBreaker replaces the default circuit breaker configuration.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(cfg)
	}
}

// WithoutCircuitBreaker disables circuit breaking entirely; every request is
// admitted regardless of upstream failures.
func WithoutCircuitBreaker() Option {
	return func(c *Client) {
		c.breaker = nil
	}
}

// WithCache enables response caching with the built-in LRU cache.
func WithCache(cfg CacheConfig) Option {
	return func(c *Client) {
		c.cacheCfg = cfg
		c.cache = NewResponseCache(cfg.MaxEntries)
	}
}

// WithCustomCache enables response caching backed by a caller-supplied Cache.
func WithCustomCache(cache Cache, cfg CacheConfig) Option {
	return func(c *Client) {
		c.cacheCfg = cfg
		c.cache = cache
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMiddleware appends middleware to the transport chain, outermost first.
func WithMiddleware(m ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, m...)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector enables metrics through the supplied collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger the client emits to.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger sets the built-in stderr logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging for all event categories.
func WithDebug() Option {
	return func(c *Client) {
		cfg := DefaultDebugConfig()
		cfg.Enabled = true
		c.debug = cfg
		if c.logger == nil {
			c.logger = NewSimpleLogger()
		}
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(cfg *DebugConfig) Option {
	return func(c *Client) {
		c.debug = cfg
		if cfg != nil && cfg.TraceIDGen != nil {
			c.traceIDGen = cfg.TraceIDGen
		}
	}
}

// WithTraceIDGenerator overrides how per-request trace IDs are produced.
func WithTraceIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.traceIDGen = gen
	}
}

// WithAvailabilityCheck installs a reachability probe consulted before every
// request; a false return refuses the request without a transport attempt.
func WithAvailabilityCheck(probe func() bool) Option {
	return func(c *Client) {
		c.available = probe
	}
}

// ValidateConfiguration checks the assembled configuration for contradictory
// or nonsensical settings and returns a validation error listing every
// violation found.
func (c *Client) ValidateConfiguration() error {
	var violations []string

	violations = append(violations, c.validateCore()...)
	violations = append(violations, c.validateRetry()...)
	violations = append(violations, c.validateRateLimit()...)
	violations = append(violations, c.validateCache()...)

	if len(violations) == 0 {
		return nil
	}
	return &ClientError{
		Kind:    KindValidation,
		Message: "invalid configuration: " + strings.Join(violations, "; "),
	}
}

func (c *Client) validateCore() []string {
	var v []string
	if c.httpClient == nil {
		v = append(v, "http client must not be nil")
	}
	if c.timeout < 0 {
		v = append(v, "timeout must not be negative")
	}
	if c.maxBodySize < 0 {
		v = append(v, "max body size must not be negative")
	}
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v = append(v, fmt.Sprintf("base URL %q is not an absolute URL", c.baseURL))
		}
	}
	for i, m := range c.middleware {
		if m == nil {
			v = append(v, fmt.Sprintf("middleware at index %d is nil", i))
		}
	}
	return v
}

func (c *Client) validateRetry() []string {
	if c.retryPolicy == nil {
		return []string{"retry policy must not be nil"}
	}
	var v []string
	if c.retryPolicy.MaxRetries > 100 {
		v = append(v, "max retries is unreasonably high (>100)")
	}
	return v
}

func (c *Client) validateRateLimit() []string {
	if c.rateLimiter == nil {
		return nil
	}
	var v []string
	cfg := c.rateLimiter.cfg
	if cfg.BurstLimit > 0 && cfg.BurstLimit < cfg.RequestsPerSecond {
		v = append(v, "burst limit is below requests per second; every burst refusal would mask the fine window")
	}
	return v
}

func (c *Client) validateCache() []string {
	if c.cache == nil {
		return nil
	}
	var v []string
	if c.cacheCfg.DefaultTTL < 0 {
		v = append(v, "cache default TTL must not be negative")
	}
	if c.cacheCfg.MaxEntries < 0 {
		v = append(v, "cache max entries must not be negative")
	}
	return v
}
