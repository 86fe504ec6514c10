package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  600,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	client, err := NewClient(Config{APIKey: "k"}, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, DefaultModel, client.model)
}

func TestEmbed(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, "whole foods 456", req.Input)

		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})

	ctx := context.Background()
	got, err := client.Embed(ctx, "whole foods 456")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)

	_, err = client.Embed(ctx, "whole foods 456")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")
}

func TestEmbed_CacheKeyedByMerchantHash(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	})
	ctx := context.Background()

	tests := []struct {
		name      string
		text      string
		wantCalls int32
	}{
		{name: "first lookup", text: "trader joes", wantCalls: 1},
		{name: "repeat hits cache", text: "trader joes", wantCalls: 1},
		{name: "other merchant misses", text: "shell oil", wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Embed(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}

	_, ok := client.cache.Get(merchant.Hash("trader joes"))
	assert.True(t, ok, "cache entry stored under the merchant hash")
	_, ok = client.cache.Get("trader joes")
	assert.False(t, ok, "plaintext merchant is not a cache key")
}

func TestEmbed_Errors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.Embed(context.Background(), "  ")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
		})
		got, err := client.Embed(context.Background(), "shell oil")
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, got)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are final", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.Embed(context.Background(), "shell oil")
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty data", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		})
		_, err := client.Embed(context.Background(), "shell oil")
		assert.Error(t, err)
	})

	t.Run("deadline", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := client.Embed(ctx, "shell oil")
		assert.Error(t, err)
	})
}
