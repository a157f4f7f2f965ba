package refreshkit

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exports Prometheus metrics for the request lifecycle and
// reliability layers. Safe for concurrent use; a nil collector is a no-op.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimitRejections *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	streamReconnects *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer; tests pass a private registry to keep metrics isolated.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_requests_total",
				Help: "Total number of logical requests completed",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refreshkit_request_duration_seconds",
				Help:    "Duration of logical requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "refreshkit_requests_in_flight",
				Help: "Number of logical requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "refreshkit_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimitRejections: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_rate_limit_rejections_total",
				Help: "Total number of requests refused by the rate limiter",
			},
			[]string{"endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "refreshkit_cache_size",
				Help: "Current number of entries in the response cache",
			},
			[]string{"name"},
		),
		streamReconnects: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_stream_reconnects_total",
				Help: "Total number of streaming connection reconnect attempts",
			},
			[]string{"connection"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshkit_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitRejection counts a limiter refusal.
func (mc *MetricsCollector) RecordRateLimitRejection(endpoint string) {
	if mc == nil {
		return
	}
	mc.rateLimitRejections.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordStreamReconnect counts a reconnect attempt for a named connection.
func (mc *MetricsCollector) RecordStreamReconnect(connection string) {
	if mc == nil {
		return
	}
	mc.streamReconnects.WithLabelValues(connection).Inc()
}

// RecordError increments the error counter by kind.
func (mc *MetricsCollector) RecordError(kind, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(kind, method, endpoint).Inc()
}

// clientStats holds the lock-free counters behind MetricsSnapshot. One
// instance lives for the client's lifetime.
type clientStats struct {
	totalRequests       atomic.Uint64
	successfulRequests  atomic.Uint64
	failedRequests      atomic.Uint64
	cacheHits           atomic.Uint64
	rateLimitRejections atomic.Uint64
	circuitBreakerTrips atomic.Uint64
	bytesSent           atomic.Uint64
	bytesReceived       atomic.Uint64
	totalLatencyNanos   atomic.Int64
	completedRequests   atomic.Uint64
}

// recordOutcome updates the per-call counters exactly once per logical
// request, cache hits included.
func (s *clientStats) recordOutcome(success bool, elapsed time.Duration) {
	s.totalRequests.Add(1)
	if success {
		s.successfulRequests.Add(1)
	} else {
		s.failedRequests.Add(1)
	}
	s.totalLatencyNanos.Add(int64(elapsed))
	s.completedRequests.Add(1)
}

// reclassifyFailure converts an already-recorded success into a failure.
// Needed when the transport succeeded but the payload later failed to
// decode: the logical call must count as failed exactly once.
func (s *clientStats) reclassifyFailure() {
	s.successfulRequests.Add(^uint64(0))
	s.failedRequests.Add(1)
}

// MetricsSnapshot is a read-only view of the client's counters.
type MetricsSnapshot struct {
	TotalRequests       uint64
	SuccessfulRequests  uint64
	FailedRequests      uint64
	CacheHits           uint64
	RateLimitRejections uint64
	CircuitBreakerTrips uint64
	BytesSent           uint64
	BytesReceived       uint64
	AverageLatency      time.Duration
}

// MetricsSnapshot returns the client's counters at this instant.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	s := c.stats
	snap := MetricsSnapshot{
		TotalRequests:       s.totalRequests.Load(),
		SuccessfulRequests:  s.successfulRequests.Load(),
		FailedRequests:      s.failedRequests.Load(),
		CacheHits:           s.cacheHits.Load(),
		RateLimitRejections: s.rateLimitRejections.Load(),
		CircuitBreakerTrips: s.circuitBreakerTrips.Load(),
		BytesSent:           s.bytesSent.Load(),
		BytesReceived:       s.bytesReceived.Load(),
	}
	if n := s.completedRequests.Load(); n > 0 {
		snap.AverageLatency = time.Duration(uint64(s.totalLatencyNanos.Load()) / n)
	}
	return snap
}
