package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns scripted completions and records requests.
type fakeClient struct {
	responses []string
	errs      []error
	requests  []CompletionRequest
	mu        sync.Mutex
}

func (f *fakeClient) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return Completion{}, f.errs[i]
	}
	if i < len(f.responses) {
		return Completion{Text: f.responses[i]}, nil
	}
	return Completion{Text: f.responses[len(f.responses)-1]}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClassifier(t *testing.T, client Client) *Classifier {
	t.Helper()
	c := NewClassifierWithClient(client, Config{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  600,
	}, nil)
	t.Cleanup(c.Close)
	return c
}

func traderJoes() model.Transaction {
	return model.Transaction{ID: "t1", Name: "TRADER JOES #552", Amount: decimal.RequireFromString("18.40")}
}

func TestClassifier_Classify(t *testing.T) {
	client := &fakeClient{responses: []string{`{"category": "Groceries", "confidence": 0.92}`}}
	c := newTestClassifier(t, client)

	decision, err := c.Classify(context.Background(), traderJoes(), testCategories)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", decision.Category)
	assert.InDelta(t, 0.92, decision.Confidence, 1e-9)

	require.Len(t, client.requests, 1)
	assert.Equal(t, systemPrompt, client.requests[0].System)
	assert.Equal(t, 200, client.requests[0].MaxTokens)

	_, err = c.Classify(context.Background(), traderJoes(), testCategories)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls(), "identical prompt served from cache")
	assert.Equal(t, 1, c.cache.size())
}

func TestClassifier_ClassifyErrors(t *testing.T) {
	t.Run("no categories", func(t *testing.T) {
		c := newTestClassifier(t, &fakeClient{responses: []string{"{}"}})
		_, err := c.Classify(context.Background(), traderJoes(), nil)
		assert.ErrorIs(t, err, common.ErrNoCategories)
	})

	t.Run("malformed output is not cached", func(t *testing.T) {
		client := &fakeClient{responses: []string{"Groceries I think"}}
		c := newTestClassifier(t, client)

		_, err := c.Classify(context.Background(), traderJoes(), testCategories)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Zero(t, c.cache.size())
	})

	t.Run("transient errors are retried", func(t *testing.T) {
		client := &fakeClient{
			errs:      []error{&common.RetryableError{Err: errors.New("503"), Retryable: true}},
			responses: []string{"", `{"category": "Groceries", "confidence": 0.8}`},
		}
		c := newTestClassifier(t, client)

		decision, err := c.Classify(context.Background(), traderJoes(), testCategories)
		require.NoError(t, err)
		assert.Equal(t, "Groceries", decision.Category)
		assert.Equal(t, 2, client.calls())
	})

	t.Run("final errors stop immediately", func(t *testing.T) {
		client := &fakeClient{
			errs:      []error{&common.RetryableError{Err: errors.New("401"), Retryable: false}},
			responses: []string{""},
		}
		c := newTestClassifier(t, client)

		_, err := c.Classify(context.Background(), traderJoes(), testCategories)
		assert.ErrorIs(t, err, common.ErrProviderUnavailable)
		assert.Equal(t, 1, client.calls())
	})
}

func TestClassifier_ClassifyBatch(t *testing.T) {
	client := &fakeClient{responses: []string{strings.Join([]string{
		"TXN|1|Groceries|0.9",
		"TXN|2|Salary|0.95",
		"garbage",
		"NEW|Fuel|1|expense|Gas stations",
	}, "\n")}}
	c := newTestClassifier(t, client)

	txns := []model.Transaction{traderJoes(), {ID: "t2", Name: "ACME PAYROLL", Amount: decimal.RequireFromString("-100")}}
	resp, err := c.ClassifyBatch(context.Background(), txns, testCategories)
	require.NoError(t, err)

	assert.Len(t, resp.Decisions, 2)
	assert.Len(t, resp.NewCategories, 1)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, 1024, client.requests[0].MaxTokens)

	empty, err := c.ClassifyBatch(context.Background(), nil, testCategories)
	require.NoError(t, err)
	assert.Empty(t, empty.Decisions)
	assert.Equal(t, 1, client.calls())
}
