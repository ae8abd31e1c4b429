package webfetch

import (
	"sync"
	"time"
)

type cacheEntry struct {
	content   string
	fetchedAt time.Time
}

// Cache is a thread-safe TTL cache of fetched page content keyed by URL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

// Get returns the cached content for url if present and not expired.
func (c *Cache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[url]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return "", false
	}
	return entry.content, true
}

// Set stores content for url, resetting its expiry.
func (c *Cache) Set(url, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{content: content, fetchedAt: time.Now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
