package refreshkit

import (
	"time"

	"github.com/widgetlab/refreshkit/internal/backoff"
)

// Backoff selects the retry-delay strategy for a policy. Construct one with
// LinearBackoff, ExponentialBackoff, FixedBackoff or CustomBackoff.
//
// Delays are deterministic; no jitter is applied.
type Backoff struct {
	strategy backoff.Strategy
}

// LinearBackoff waits interval * (attempt+1) before each retry.
func LinearBackoff(interval time.Duration) Backoff {
	return Backoff{strategy: backoff.Linear{Interval: interval}}
}

// ExponentialBackoff waits base * multiplier^attempt before each retry.
func ExponentialBackoff(base time.Duration, multiplier float64) Backoff {
	return Backoff{strategy: backoff.Exponential{Base: base, Multiplier: multiplier}}
}

// FixedBackoff waits the same interval before every retry.
func FixedBackoff(interval time.Duration) Backoff {
	return Backoff{strategy: backoff.Fixed{Interval: interval}}
}

// CustomBackoff delegates delay calculation to fn.
func CustomBackoff(fn func(attempt int) time.Duration) Backoff {
	return Backoff{strategy: backoff.Func(fn)}
}

// Delay returns the wait before retry attempt n (zero-based). A zero-value
// Backoff falls back to the default exponential strategy.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.strategy == nil {
		return backoff.Exponential{Base: 100 * time.Millisecond, Multiplier: 2.0}.Delay(attempt)
	}
	return b.strategy.Delay(attempt)
}

// RetryPolicy governs how many times a failed request is re-attempted and
// how long to wait between attempts. Configured at client construction via
// WithRetryPolicy; overridable per request through Request.Retry.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the initial call.
	MaxRetries int

	// Backoff computes the delay before each retry.
	Backoff Backoff

	// RetryableStatusCodes limits which ServerError statuses are retried.
	RetryableStatusCodes map[int]struct{}

	// RetryableKinds limits which failure kinds are retried at all.
	RetryableKinds map[Kind]struct{}
}

// DefaultRetryPolicy retries timeouts, connection failures and retryable
// server statuses up to three times with exponential backoff.
//
// 429 is deliberately absent from the retryable status set: a rate-limited
// response maps to KindRateLimitExceeded, which is never retried internally.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		Backoff:    ExponentialBackoff(100*time.Millisecond, 2.0),
		RetryableStatusCodes: map[int]struct{}{
			408: {},
			500: {},
			502: {},
			503: {},
			504: {},
		},
		RetryableKinds: map[Kind]struct{}{
			KindTimeout:            {},
			KindNetworkUnavailable: {},
			KindServerError:        {},
		},
	}
}

// ShouldRetry reports whether the given failure should be re-attempted and,
// if so, how long to wait first. attempt is the zero-based index of the
// attempt that just failed.
func (p *RetryPolicy) ShouldRetry(err *ClientError, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.MaxRetries {
		return 0, false
	}
	if !p.retryable(err) {
		return 0, false
	}
	return p.Backoff.Delay(attempt), true
}

// retryable applies the propagation policy: serialization and rate-limit
// failures are never retried; everything else must appear in RetryableKinds,
// and server errors additionally in RetryableStatusCodes.
func (p *RetryPolicy) retryable(err *ClientError) bool {
	switch err.Kind {
	case KindSerialization, KindRateLimitExceeded, KindCircuitBreakerOpen:
		return false
	}
	if _, ok := p.RetryableKinds[err.Kind]; !ok {
		return false
	}
	if err.Kind == KindServerError {
		_, ok := p.RetryableStatusCodes[err.StatusCode]
		return ok
	}
	return true
}
