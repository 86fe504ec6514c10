package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows capacity immediately", func(t *testing.T) {
		rl := NewRateLimiter(5)
		defer rl.Close()

		for i := 0; i < 5; i++ {
			assert.True(t, rl.TryAcquire(), "attempt %d", i+1)
		}
		assert.False(t, rl.TryAcquire())
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := NewRateLimiter(1)
		defer rl.Close()

		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := rl.Wait(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("close is idempotent", func(t *testing.T) {
		rl := NewRateLimiter(10)
		rl.Close()
		rl.Close()
	})
}
