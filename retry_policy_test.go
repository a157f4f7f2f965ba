package refreshkit

import (
	"testing"
	"time"
)

func TestShouldRetryKinds(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  *ClientError
		want bool
	}{
		{"timeout", &ClientError{Kind: KindTimeout}, true},
		{"network", &ClientError{Kind: KindNetworkUnavailable}, true},
		{"retryable server status", &ClientError{Kind: KindServerError, StatusCode: 503}, true},
		{"non-retryable server status", &ClientError{Kind: KindServerError, StatusCode: 501}, false},
		{"rate limited", &ClientError{Kind: KindRateLimitExceeded, StatusCode: 429}, false},
		{"serialization", &ClientError{Kind: KindSerialization}, false},
		{"circuit open", &ClientError{Kind: KindCircuitBreakerOpen}, false},
		{"auth", &ClientError{Kind: KindAuthenticationFailed, StatusCode: 401}, false},
		{"validation", &ClientError{Kind: KindValidation}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := p.ShouldRetry(tt.err, 0); got != tt.want {
				t.Errorf("ShouldRetry(%s) = %v, want %v", tt.err.Kind, got, tt.want)
			}
		})
	}
}

func TestShouldRetryRespectsMaxRetries(t *testing.T) {
	p := DefaultRetryPolicy()
	err := &ClientError{Kind: KindTimeout}

	if _, ok := p.ShouldRetry(err, p.MaxRetries-1); !ok {
		t.Error("attempt below the limit was not retried")
	}
	if _, ok := p.ShouldRetry(err, p.MaxRetries); ok {
		t.Error("attempt at the limit was retried")
	}
}

func TestShouldRetryReturnsBackoffDelay(t *testing.T) {
	p := &RetryPolicy{
		MaxRetries:     3,
		Backoff:        ExponentialBackoff(time.Second, 2),
		RetryableKinds: map[Kind]struct{}{KindTimeout: {}},
	}
	err := &ClientError{Kind: KindTimeout}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for attempt, expected := range want {
		delay, ok := p.ShouldRetry(err, attempt)
		if !ok {
			t.Fatalf("attempt %d unexpectedly not retried", attempt)
		}
		if delay != expected {
			t.Errorf("attempt %d: delay = %v, want %v", attempt, delay, expected)
		}
	}
}

func TestZeroValueBackoffFallsBack(t *testing.T) {
	var b Backoff
	if got := b.Delay(0); got != 100*time.Millisecond {
		t.Errorf("zero-value Delay(0) = %v, want 100ms", got)
	}
	if got := b.Delay(2); got != 400*time.Millisecond {
		t.Errorf("zero-value Delay(2) = %v, want 400ms", got)
	}
}

func TestCustomBackoff(t *testing.T) {
	b := CustomBackoff(func(attempt int) time.Duration {
		return time.Duration(attempt+1) * 10 * time.Millisecond
	})
	if got := b.Delay(4); got != 50*time.Millisecond {
		t.Errorf("Delay(4) = %v, want 50ms", got)
	}
}
