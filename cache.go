package refreshkit

import (
	"container/list"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CacheConfig configures response caching.
type CacheConfig struct {
	Enabled bool

	// DefaultTTL applies when a request carries no TTL override.
	DefaultTTL time.Duration

	// MaxEntries bounds the cache; least-recently-used entries are evicted
	// past the bound. Zero means 1024.
	MaxEntries int

	// VaryHeaders lists request headers that become part of the cache key.
	VaryHeaders []string
}

// CacheEntry is a cached response.
type CacheEntry struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	// ETag is the validator token of the cached response, when the server
	// sent one.
	ETag      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Cache stores successful responses keyed by request identity. Implementations
// must be safe for concurrent use and must never block on I/O: lookups sit on
// the request hot path in front of the transport.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Invalidate(key string)
	Clear()
	Len() int
}

// ResponseCache is the default Cache: a mutex-guarded map with TTL expiry
// and LRU eviction once MaxEntries is exceeded.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
}

type lruItem struct {
	key   string
	entry *CacheEntry
}

// NewResponseCache creates a cache bounded to maxEntries (1024 when <= 0).
func NewResponseCache(maxEntries int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &ResponseCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns a fresh entry and promotes it; expired entries are removed and
// reported as a miss.
func (c *ResponseCache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*lruItem)
	if time.Now().After(item.entry.ExpiresAt) {
		c.lru.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return item.entry, true
}

// Set stores an entry, evicting the least-recently-used entry when full.
func (c *ResponseCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruItem).entry = entry
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&lruItem{key: key, entry: entry})

	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruItem).key)
	}
}

// Invalidate removes a single entry.
func (c *ResponseCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.lru.Remove(el)
		delete(c.entries, key)
	}
}

// Clear removes all entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// cacheKey derives the entry key from method, URL and the configured vary
// headers.
func cacheKey(method, rawURL string, header map[string]string, vary []string) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(rawURL)
	for _, h := range vary {
		if v, ok := header[h]; ok {
			b.WriteByte(':')
			b.WriteString(h)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

// cacheableMethod limits caching to safe reads.
func cacheableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
