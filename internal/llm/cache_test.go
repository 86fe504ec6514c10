package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newDecisionCache(5 * time.Minute)
		defer cache.Close()

		_, found := cache.get("missing")
		assert.False(t, found)

		decision := Decision{Category: "Coffee & Dining", Confidence: 0.95}
		cache.set("key1", decision)

		got, found := cache.get("key1")
		assert.True(t, found)
		assert.Equal(t, decision, got)
		assert.Equal(t, 1, cache.size())
	})

	t.Run("expiration", func(t *testing.T) {
		cache := newDecisionCache(50 * time.Millisecond)
		defer cache.Close()

		cache.set("key2", Decision{Category: "Shopping", Confidence: 0.85})
		_, found := cache.get("key2")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)
		_, found = cache.get("key2")
		assert.False(t, found)
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := newDecisionCache(time.Minute)
		defer cache.Close()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := string(rune('a' + i))
				cache.set(key, Decision{Category: key})
				_, _ = cache.get(key)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, cache.size())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		cache := newDecisionCache(0)
		cache.Close()
		cache.Close()
		assert.Equal(t, 15*time.Minute, cache.ttl)
	})
}
