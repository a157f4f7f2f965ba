package refreshkit

import (
	"testing"
	"time"
)

func TestRateLimiterRefusesBeyondWindowBudget(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 2,
		Window:            100 * time.Millisecond,
	})

	if !rl.Admit("svc/a") {
		t.Fatal("first admission refused")
	}
	if !rl.Admit("svc/a") {
		t.Fatal("second admission refused")
	}
	if rl.Admit("svc/a") {
		t.Error("third admission inside the window was not refused")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Window:            50 * time.Millisecond,
	})

	if !rl.Admit("svc/a") {
		t.Fatal("first admission refused")
	}
	if rl.Admit("svc/a") {
		t.Fatal("second admission inside the window was not refused")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Admit("svc/a") {
		t.Error("admission refused after the window slid past the first request")
	}
}

func TestRateLimiterRefusalHasNoSideEffects(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Window:            50 * time.Millisecond,
	})

	rl.Admit("svc/a")
	for i := 0; i < 10; i++ {
		rl.Admit("svc/a")
	}

	time.Sleep(60 * time.Millisecond)

	// Refused calls must not extend the window; one slot frees up exactly
	// when the single admitted timestamp ages out.
	if !rl.Admit("svc/a") {
		t.Error("refused admissions consumed window budget")
	}
}

func TestRateLimiterPerEndpoint(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Window:            time.Second,
		PerEndpoint:       true,
	})

	if !rl.Admit("svc/a") {
		t.Fatal("endpoint a refused")
	}
	if rl.Admit("svc/a") {
		t.Error("endpoint a admitted beyond budget")
	}
	if !rl.Admit("svc/b") {
		t.Error("endpoint b throttled by endpoint a's traffic")
	}
}

func TestRateLimiterGlobalByDefault(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		Window:            time.Second,
	})

	if !rl.Admit("svc/a") {
		t.Fatal("first admission refused")
	}
	if rl.Admit("svc/b") {
		t.Error("distinct endpoints shared no budget despite global mode")
	}
}

func TestRateLimiterBurstBound(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 100,
		BurstLimit:        3,
		Window:            10 * time.Millisecond,
	})

	admitted := 0
	for i := 0; i < 5; i++ {
		if rl.Admit("svc/a") {
			admitted++
		}
		time.Sleep(12 * time.Millisecond) // stay under the fine bound
	}
	if admitted != 3 {
		t.Errorf("admitted %d within the coarse window, want 3", admitted)
	}
}

func TestRateLimiterStatus(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 5,
		Window:            time.Second,
		PerEndpoint:       true,
	})

	rl.Admit("svc/a")
	rl.Admit("svc/a")
	rl.Admit("svc/b")

	st := rl.Status()
	if st.TrackedKeys != 2 {
		t.Errorf("TrackedKeys = %d, want 2", st.TrackedKeys)
	}
	if st.InWindow != 3 {
		t.Errorf("InWindow = %d, want 3", st.InWindow)
	}
	if st.RequestsPerSecond != 5 || !st.PerEndpoint {
		t.Errorf("status did not echo configuration: %+v", st)
	}
}
