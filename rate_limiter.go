package refreshkit

import (
	"sync"
	"time"
)

// RateLimitConfig configures sliding-window admission control.
type RateLimitConfig struct {
	// RequestsPerSecond bounds admissions within the fine window.
	RequestsPerSecond int

	// BurstLimit bounds admissions within the coarse (one minute) window.
	// Zero disables the coarse bound.
	BurstLimit int

	// PerEndpoint tracks each endpoint (host+path) separately instead of a
	// single global window.
	PerEndpoint bool

	// Window is the fine window length; defaults to one second.
	Window time.Duration
}

// coarseWindow is the trailing period covered by the burst bound.
const coarseWindow = time.Minute

// globalKey is the tracking key used when per-endpoint tracking is off.
const globalKey = "global"

// RateLimiter admits requests based on the number of prior admissions inside
// a trailing window. Refusal is immediate; no queuing or internal retry.
// Safe for concurrent use.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*admissionWindow
}

// admissionWindow holds per-key admission timestamps. The fine slice is
// pruned on every check; the coarse slice is pruned opportunistically to
// bound memory without paying the cost on every admission.
type admissionWindow struct {
	fine   []time.Time
	coarse []time.Time
}

// NewRateLimiter creates a limiter; a zero RequestsPerSecond defaults to 10.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &RateLimiter{
		cfg:     cfg,
		windows: make(map[string]*admissionWindow),
	}
}

// Admit records and permits the request for key if both window budgets have
// room, else refuses without side effects. Key granularity follows
// PerEndpoint; callers pass the endpoint key unconditionally.
func (rl *RateLimiter) Admit(key string) bool {
	if !rl.cfg.PerEndpoint {
		key = globalKey
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		w = &admissionWindow{}
		rl.windows[key] = w
	}

	w.fine = pruneBefore(w.fine, now.Add(-rl.cfg.Window))
	if len(w.fine) >= rl.cfg.RequestsPerSecond {
		return false
	}

	if rl.cfg.BurstLimit > 0 {
		// Opportunistic prune: only when the slice has grown past the bound,
		// so steady-state admissions stay cheap.
		if len(w.coarse) >= rl.cfg.BurstLimit {
			w.coarse = pruneBefore(w.coarse, now.Add(-coarseWindow))
		}
		if len(w.coarse) >= rl.cfg.BurstLimit {
			return false
		}
		w.coarse = append(w.coarse, now)
	}

	w.fine = append(w.fine, now)
	return true
}

// Status summarizes limiter state for health reporting.
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.cfg.Window)
	inWindow := 0
	for _, w := range rl.windows {
		w.fine = pruneBefore(w.fine, cutoff)
		inWindow += len(w.fine)
	}
	return RateLimitStatus{
		RequestsPerSecond: rl.cfg.RequestsPerSecond,
		BurstLimit:        rl.cfg.BurstLimit,
		PerEndpoint:       rl.cfg.PerEndpoint,
		TrackedKeys:       len(rl.windows),
		InWindow:          inWindow,
	}
}

// RateLimitStatus is a point-in-time view of the limiter.
type RateLimitStatus struct {
	RequestsPerSecond int
	BurstLimit        int
	PerEndpoint       bool
	TrackedKeys       int
	InWindow          int
}

// pruneBefore drops timestamps older than cutoff, preserving order.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
