package services

import (
	"log"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// CacheService is the process-wide read-through TTL cache. It is
// constructed once in main and injected into every component with a
// DB-backed read path. Entries expire on their own; Sweep reclaims them.
//
// Loader failures propagate unchanged — the cache never hides a
// backing-store error behind a stale value.
type CacheService struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCacheService() *CacheService {
	return &CacheService{entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key, or invokes loader on miss/expiry,
// stores the result for ttl, and returns it.
func (c *CacheService) Get(key string, ttl time.Duration, loader func() (interface{}, error)) (interface{}, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := loader()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return value, nil
}

// Set stores a value directly (used for consumed-token marks where there
// is nothing to load).
func (c *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Has reports whether key is present and unexpired.
func (c *CacheService) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return ok && time.Now().Before(entry.expiresAt)
}

// Invalidate removes every entry whose key contains pattern and returns
// how many were dropped. Write paths must call this with patterns covering
// every affected key before reporting success — a missed invalidation is a
// stale-read bug, not a performance issue.
func (c *CacheService) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Sweep drops expired entries; called periodically by the review scheduler.
func (c *CacheService) Sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	swept := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			swept++
		}
	}
	if swept > 0 {
		log.Printf("🧹 [CACHE] Swept %d expired entries (%d remain)", swept, len(c.entries))
	}
}

// Len returns the number of entries currently held (including expired
// ones not yet swept).
func (c *CacheService) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
