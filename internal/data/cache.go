package data

import (
	"os"
	"sync"
	"time"

	"tibber-insights/internal/model"
)

const priceCacheKey = "prices"

// CacheEntry is one cached price response.
type CacheEntry struct {
	Data      *model.PriceData
	ExpiresAt time.Time
}

// ResponseCache is an in-memory TTL cache for Tibber price responses. It is
// meant for local development, where repeated runs would otherwise hammer
// the rate-limited API; it is disabled unless explicitly enabled and never
// active when API_ENV=production.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
	ttl   time.Duration
}

var globalCache *ResponseCache
var cacheOnce sync.Once

// GetCache returns the global cache instance if caching is enabled,
// otherwise nil.
func GetCache() *ResponseCache {
	if os.Getenv("ENABLE_TIBBER_CACHE") != "true" {
		return nil
	}
	if os.Getenv("API_ENV") == "production" {
		return nil
	}

	cacheOnce.Do(func() {
		ttl := 1 * time.Hour
		if ttlStr := os.Getenv("TIBBER_CACHE_TTL"); ttlStr != "" {
			if parsed, err := time.ParseDuration(ttlStr); err == nil {
				ttl = parsed
			}
		}
		globalCache = &ResponseCache{
			store: make(map[string]*CacheEntry),
			ttl:   ttl,
		}
		go globalCache.cleanup()
	})

	return globalCache
}

// Get retrieves a cached response if present and not expired.
func (c *ResponseCache) Get(key string) (*model.PriceData, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Data, true
}

// Set stores a response in the cache.
func (c *ResponseCache) Set(key string, data *model.PriceData) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Clear removes all entries from the cache.
func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*CacheEntry)
}

// cleanup periodically removes expired entries.
func (c *ResponseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.store {
			if now.After(entry.ExpiresAt) {
				delete(c.store, key)
			}
		}
		c.mu.Unlock()
	}
}
