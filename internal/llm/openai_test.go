package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	_, err := newOpenAIClient(Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	client, err := newOpenAIClient(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, client.(*openAIClient).model)
}

func TestOpenAIClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, 321, req.MaxTokens)

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"category\": \"Gas\", \"confidence\": 0.8}"}}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 9}
		}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	completion, err := client.Complete(context.Background(), CompletionRequest{
		System:    "sys",
		Prompt:    "prompt",
		MaxTokens: 321,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"category": "Gas", "confidence": 0.8}`, completion.Text)
	assert.Equal(t, int64(40), completion.InputTokens)
	assert.Equal(t, int64(9), completion.OutputTokens)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, retryable: true},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, retryable: false},
		{name: "no choices", status: http.StatusOK, body: `{"choices": []}`, retryable: false},
		{name: "not json", status: http.StatusOK, body: `<html>`, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
		})
	}
}
