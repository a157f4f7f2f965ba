// Package refreshkit provides a resilient network client for widget data
// refresh, layering composable reliability primitives around net/http:
//
//   - Retries with pluggable backoff (linear / exponential / fixed / custom)
//   - Sliding-window rate limiting, per endpoint or global
//   - In-memory TTL response cache with LRU-bounded size
//   - Circuit breaker (closed / open / half-open with bounded trial calls)
//   - Bounded-concurrency batch execution with submission-order results
//   - Reconnecting streaming connections for push-style data feeds
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Typed failures: every error is a *ClientError with a Kind
//   - Extensibility via user supplied middleware & pluggable cache / metrics
//
// Typical usage:
//
//	client := refreshkit.New(
//	    refreshkit.WithBaseURL("https://api.example.com"),
//	    refreshkit.WithRateLimit(refreshkit.RateLimitConfig{RequestsPerSecond: 10}),
//	    refreshkit.WithCache(refreshkit.CacheConfig{Enabled: true, DefaultTTL: 5 * time.Minute}),
//	    refreshkit.WithCircuitBreaker(refreshkit.CircuitBreakerConfig{}),
//	)
//	env, err := refreshkit.Execute[Weather](ctx, client, refreshkit.Request{
//	    Method: "GET",
//	    Path:   "/v1/weather",
//	})
//
// Backoff delays carry no jitter: the delay for a given attempt is fully
// deterministic. Under many concurrent clients this can synchronize retry
// storms; supply a custom backoff if that matters for your deployment.
//
// The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger) and enable debug flags selectively (WithDebug /
// WithDebugConfig) for insight without noise.
package refreshkit
