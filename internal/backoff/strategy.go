// Package backoff implements the retry-delay strategies used by the client.
//
// All strategies are pure: the delay for a given attempt index is fully
// deterministic and no jitter is applied.
package backoff

import "time"

// Strategy computes the wait before retry attempt n. Attempt indices start
// at zero: Delay(0) is the wait before the first retry.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Linear grows the delay by one interval per attempt: interval * (n+1).
type Linear struct {
	Interval time.Duration
}

// Delay implements Strategy.
func (s Linear) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return s.Interval * time.Duration(attempt+1)
}

// Exponential multiplies the base delay per attempt: base * multiplier^n.
type Exponential struct {
	Base       time.Duration
	Multiplier float64
}

// Delay implements Strategy.
func (s Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Clamp the exponent to keep the float math from overflowing.
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(float64(s.Base) * pow(s.Multiplier, attempt))
	if d < 0 {
		d = 1<<63 - 1
	}
	return d
}

// Fixed waits the same interval before every retry.
type Fixed struct {
	Interval time.Duration
}

// Delay implements Strategy.
func (s Fixed) Delay(attempt int) time.Duration {
	return s.Interval
}

// Func adapts a caller-supplied function into a Strategy.
type Func func(attempt int) time.Duration

// Delay implements Strategy.
func (f Func) Delay(attempt int) time.Duration {
	return f(attempt)
}

// pow computes base^exponent by repeated multiplication; exponents here are
// small non-negative integers so this beats math.Pow on the hot path.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
