package refreshkit

import "time"

// CacheStatus summarizes the response cache for health reporting.
type CacheStatus struct {
	Enabled    bool
	Entries    int
	MaxEntries int
}

// HealthStatus is a point-in-time view of the client's reliability layers.
type HealthStatus struct {
	// Healthy is true while the circuit breaker is closed.
	Healthy        bool
	AverageLatency time.Duration
	BreakerState   CircuitState
	RateLimit      RateLimitStatus
	Cache          CacheStatus
}

// HealthStatus reports the state of the breaker, limiter and cache alongside
// the running average latency.
func (c *Client) HealthStatus() HealthStatus {
	status := HealthStatus{Healthy: true}

	if c.breaker != nil {
		status.BreakerState = c.breaker.State()
		status.Healthy = status.BreakerState == StateClosed
	}
	if c.rateLimiter != nil {
		status.RateLimit = c.rateLimiter.Status()
	}
	if c.cache != nil {
		status.Cache = CacheStatus{
			Enabled:    c.cacheCfg.Enabled,
			Entries:    c.cache.Len(),
			MaxEntries: c.cacheCfg.MaxEntries,
		}
	}
	status.AverageLatency = c.MetricsSnapshot().AverageLatency
	return status
}
