package refreshkit

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Result pairs one batch request's envelope with its error. Exactly one of
// Envelope and Err is set.
type Result[T any] struct {
	Envelope *Envelope[T]
	Err      error
}

// Batch executes the requests concurrently, at most maxConcurrency at a
// time, and returns results in submission order. One request's failure never
// affects its siblings. A maxConcurrency below one means one.
//
// Batch is a function rather than a method because methods cannot carry type
// parameters.
func Batch[T any](ctx context.Context, c *Client, reqs []Request, maxConcurrency int) []Result[T] {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	results := make([]Result[T], len(reqs))
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	var wg sync.WaitGroup
	for i := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result[T]{Err: &ClientError{
				Kind:    KindTimeout,
				Message: "batch cancelled before the request started",
				Cause:   err,
			}}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			env, err := Execute[T](ctx, c, reqs[i])
			if err != nil {
				results[i] = Result[T]{Err: err}
				return
			}
			results[i] = Result[T]{Envelope: env}
		}(i)
	}
	wg.Wait()
	return results
}

// Batch executes the requests with bodies left as raw JSON; see the generic
// Batch function for typed decoding.
func (c *Client) Batch(ctx context.Context, reqs []Request, maxConcurrency int) []Result[json.RawMessage] {
	return Batch[json.RawMessage](ctx, c, reqs, maxConcurrency)
}
