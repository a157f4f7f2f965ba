// Command example exercises refreshkit against a local httptest server:
// retries with exponential backoff, response caching, rate limiting and the
// metrics snapshot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"

	"github.com/widgetlab/refreshkit"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The first two calls fail to show the retry path.
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"symbol":"ACME","price":42.5}`)
	}))
	defer server.Close()

	client := refreshkit.New(
		refreshkit.WithBaseURL(server.URL),
		refreshkit.WithTimeout(5*time.Second),
		refreshkit.WithRetryPolicy(&refreshkit.RetryPolicy{
			MaxRetries:           3,
			Backoff:              refreshkit.ExponentialBackoff(50*time.Millisecond, 2),
			RetryableStatusCodes: map[int]struct{}{503: {}},
			RetryableKinds:       map[refreshkit.Kind]struct{}{refreshkit.KindServerError: {}},
		}),
		refreshkit.WithRateLimit(refreshkit.RateLimitConfig{RequestsPerSecond: 20}),
		refreshkit.WithCache(refreshkit.CacheConfig{Enabled: true, DefaultTTL: time.Minute}),
		refreshkit.WithLogger(refreshkit.NewSlogLogger(logger)),
		refreshkit.WithDebugConfig(&refreshkit.DebugConfig{
			Enabled: true, LogRequests: true, LogRetries: true, LogCache: true,
		}),
	)
	defer client.Close()

	ctx := context.Background()
	req := refreshkit.Request{Method: http.MethodGet, Path: "/v1/quote"}

	env, err := refreshkit.Execute[quote](ctx, client, req)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	logger.Info("first fetch",
		"symbol", env.Value.Symbol, "price", env.Value.Price,
		"attempts", env.Attempts, "elapsed", env.Elapsed)

	// Second fetch is served from cache: zero attempts.
	env, err = refreshkit.Execute[quote](ctx, client, req)
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
	logger.Info("second fetch", "fromCache", env.FromCache, "attempts", env.Attempts)

	snap := client.MetricsSnapshot()
	logger.Info("snapshot",
		"total", snap.TotalRequests, "succeeded", snap.SuccessfulRequests,
		"cacheHits", snap.CacheHits, "avgLatency", snap.AverageLatency)
}
