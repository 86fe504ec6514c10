package llm

import (
	"sync"
	"time"
)

// cacheEntry is a cached decision.
type cacheEntry struct {
	expiry   time.Time
	decision Decision
}

// decisionCache provides thread-safe, TTL-bounded caching of decisions keyed
// by prompt digest.
type decisionCache struct {
	entries  map[string]cacheEntry
	stopCh   chan struct{}
	ttl      time.Duration
	mu       sync.RWMutex
	stopOnce sync.Once
}

// newDecisionCache creates a new cache with the specified TTL.
func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &decisionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves a decision if it exists and hasn't expired.
func (c *decisionCache) get(key string) (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return Decision{}, false
	}

	return entry.decision, true
}

// set stores a decision.
func (c *decisionCache) set(key string, decision Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		decision: decision,
		expiry:   time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *decisionCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *decisionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *decisionCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
