// Package embedding provides text embedding providers.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/service"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultModel is the OpenAI embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

const defaultBaseURL = "https://api.openai.com"

// Config holds configuration for the embedding provider.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  int // requests per minute
	CacheSize  int
}

// Client requests embeddings from the OpenAI embeddings API.
type Client struct {
	httpClient  *http.Client
	cache       *lru.Cache[string, []float32]
	rateLimiter *common.RateLimiter
	logger      *slog.Logger
	apiKey      string
	model       string
	baseURL     string
	retryOpts   service.RetryOptions
}

var _ service.Embedder = (*Client)(nil)

// NewClient creates an embedding client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required for embeddings", common.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries + 1,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.InitialDelay <= 0 {
		retryOpts.InitialDelay = 250 * time.Millisecond
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache:       cache,
		rateLimiter: common.NewRateLimiter(cfg.RateLimit),
		logger:      common.LoggerOrDefault(logger),
		retryOpts:   retryOpts,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns the embedding for a normalized merchant string. Results are
// cached by merchant hash.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", common.ErrInvalidInput)
	}

	key := merchant.Hash(text)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	var embedding []float32
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		var reqErr error
		embedding, reqErr = c.request(ctx, text)
		return reqErr
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	c.cache.Add(key, embedding)
	return embedding, nil
}

func (c *Client) request(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to marshal request: %w", err), Retryable: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, common.HTTPStatusError("OpenAI embeddings", resp.StatusCode, respBody)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to parse response: %w", err), Retryable: false}
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, &common.RetryableError{Err: fmt.Errorf("no embedding returned"), Retryable: false}
	}

	c.logger.Debug("embedding computed", "model", c.model, "dimensions", len(parsed.Data[0].Embedding))
	return parsed.Data[0].Embedding, nil
}

// Close releases background resources.
func (c *Client) Close() {
	c.rateLimiter.Close()
}
