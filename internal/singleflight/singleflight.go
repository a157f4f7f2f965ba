// Package singleflight coalesces concurrent calls for the same key into one
// execution whose result every caller shares.
package singleflight

import "sync"

type call struct {
	wg      sync.WaitGroup
	val     interface{}
	err     error
	waiters int
}

// Group deduplicates in-flight function calls by key.
type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

// Do executes fn for key unless a call for the same key is already running,
// in which case it waits and returns that call's result. shared reports
// whether the result was produced by another caller.
func (g *Group) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	if c, ok := g.calls[key]; ok {
		c.waiters++
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}
	c := &call{}
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err, false
}

// Forget drops the in-flight record for key so the next Do starts fresh.
// Callers already waiting on the old call still receive its result.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}
