// Package cache provides a process-local TTL cache with bounded size,
// injected into the components that need repeated lookups (sibling-document
// claims in the quality gate).
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value   interface{}
	addedAt time.Time
	expires time.Time
}

// TTLCache is a small read-through cache. Entries expire after the TTL and
// the oldest entry is evicted once maxEntries is reached.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
}

func New(ttl time.Duration, maxEntries int) *TTLCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &TTLCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest(now)
	}
	c.entries[key] = entry{value: value, addedAt: now, expires: now.Add(c.ttl)}
}

// evictOldest drops expired entries first, then the oldest survivor.
// Caller holds the lock.
func (c *TTLCache) evictOldest(now time.Time) {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.addedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.addedAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
