package search

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache is a read-through LRU with TTL for ranked responses.
// It is an optimization, not a synchronization point: concurrent misses
// on the same key may both compute, and that is fine.
type ResultCache struct {
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	response  *RankedResponse
	expiresAt time.Time
}

// NewResultCache creates a cache holding up to size responses, each
// fresh for ttl. The clock is injected so expiry is testable; pass nil
// for time.Now.
func NewResultCache(size int, ttl time.Duration, now func() time.Time) (*ResultCache, error) {
	if size <= 0 {
		size = 1024
	}
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{cache: cache, ttl: ttl, now: now}, nil
}

// Key builds the cache key from the normalized query and every option
// that changes the response.
func (c *ResultCache) Key(query string, opts Options) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	b.WriteString("|c=")
	b.WriteString(strings.ToLower(opts.Filters.Category))
	b.WriteString("|b=")
	b.WriteString(strings.ToLower(opts.Filters.Brand))
	if opts.Filters.MinPrice != nil {
		fmt.Fprintf(&b, "|min=%g", *opts.Filters.MinPrice)
	}
	if opts.Filters.MaxPrice != nil {
		fmt.Fprintf(&b, "|max=%g", *opts.Filters.MaxPrice)
	}
	fmt.Fprintf(&b, "|p=%d|s=%d|o=%s", opts.Page, opts.PageSize, opts.SortBy)
	return b.String()
}

// Get returns a fresh cached response, or nil on miss or expiry.
func (c *ResultCache) Get(key string) *RankedResponse {
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil
	}
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return nil
	}
	return entry.response
}

// Put stores a response under key with the configured TTL.
func (c *ResultCache) Put(key string, resp *RankedResponse) {
	c.cache.Add(key, cacheEntry{
		response:  resp,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Len returns the number of cached entries, expired or not.
func (c *ResultCache) Len() int {
	return c.cache.Len()
}
