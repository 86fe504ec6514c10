package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
)

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// batchTokensPerTransaction sizes the completion budget of batch prompts.
const batchTokensPerTransaction = 60

// Classifier asks a generative model to categorize transactions.
type Classifier struct {
	client      Client
	cache       *decisionCache
	logger      *slog.Logger
	rateLimiter *common.RateLimiter
	retryOpts   service.RetryOptions
	maxTokens   int
}

// NewClassifier creates a classifier for the configured provider.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wraps an existing provider client.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries + 1,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.InitialDelay <= 0 {
		retryOpts.InitialDelay = time.Second
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}

	return &Classifier{
		client:      client,
		cache:       newDecisionCache(cfg.CacheTTL),
		logger:      common.LoggerOrDefault(logger),
		retryOpts:   retryOpts,
		rateLimiter: common.NewRateLimiter(cfg.RateLimit),
		maxTokens:   maxTokens,
	}
}

// Classify picks one of categories for txn, or declines.
func (c *Classifier) Classify(ctx context.Context, txn model.Transaction, categories []model.Category) (Decision, error) {
	if len(categories) == 0 {
		return Decision{}, common.ErrNoCategories
	}

	prompt := buildPrompt(txn, categories)
	key := promptKey(prompt)
	if decision, found := c.cache.get(key); found {
		c.logger.Debug("cache hit for transaction", "transaction_id", txn.ID)
		return decision, nil
	}

	content, err := c.complete(ctx, CompletionRequest{
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return Decision{}, err
	}

	decision, err := parseDecision(content)
	if err != nil {
		return Decision{}, err
	}

	c.cache.set(key, decision)
	c.logger.Debug("transaction classified",
		"transaction_id", txn.ID,
		"category", decision.Category,
		"confidence", decision.Confidence)

	return decision, nil
}

// ClassifyBatch categorizes txns in a single request. Malformed lines are
// dropped; only transport and provider errors are returned.
func (c *Classifier) ClassifyBatch(ctx context.Context, txns []model.Transaction, categories []model.Category) (BatchResponse, error) {
	if len(txns) == 0 {
		return BatchResponse{}, nil
	}
	if len(categories) == 0 {
		return BatchResponse{}, common.ErrNoCategories
	}

	content, err := c.complete(ctx, CompletionRequest{
		System:    systemPrompt,
		Prompt:    buildBatchPrompt(txns, categories),
		MaxTokens: max(1024, batchTokensPerTransaction*len(txns)),
	})
	if err != nil {
		return BatchResponse{}, err
	}

	resp := parseBatchResponse(content, len(txns))
	if resp.Skipped > 0 {
		c.logger.Warn("skipped malformed batch lines",
			"skipped", resp.Skipped,
			"transactions", len(txns))
	}

	return resp, nil
}

func (c *Classifier) complete(ctx context.Context, req CompletionRequest) (string, error) {
	var completion Completion
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		var callErr error
		completion, callErr = c.client.Complete(ctx, req)
		return callErr
	}, c.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrProviderUnavailable, err)
	}

	c.logger.Debug("completion received",
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens)

	return completion.Text, nil
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Close releases background resources.
func (c *Classifier) Close() {
	c.cache.Close()
	c.rateLimiter.Close()
}
