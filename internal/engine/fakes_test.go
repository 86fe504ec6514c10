package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/wantnot/internal/llm"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
)

var errProvider = errors.New("provider exploded")

// stubMatcher returns a fixed candidate and counts calls.
type stubMatcher struct {
	err       error
	candidate Candidate
	calls     atomic.Int32
}

func (m *stubMatcher) Match(context.Context, string, model.Transaction) (Candidate, error) {
	m.calls.Add(1)
	return m.candidate, m.err
}

func found(name string, method model.Method, confidence float64) Candidate {
	return Found(model.Categorization{
		CategoryID:   "cat-" + name,
		CategoryName: name,
		Method:       method,
		Confidence:   confidence,
	})
}

// fakeClassifier answers by merchant text.
type fakeClassifier struct {
	decisions  map[string]llm.Decision
	err        error
	batchErr   error
	batch      func(txns []model.Transaction) llm.BatchResponse
	batchSizes []int
	mu         sync.Mutex
	calls      int
	batchCalls int
}

func (c *fakeClassifier) Classify(_ context.Context, txn model.Transaction, _ []model.Category) (llm.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return llm.Decision{}, c.err
	}
	return c.decisions[txn.MerchantText()], nil
}

func (c *fakeClassifier) ClassifyBatch(_ context.Context, txns []model.Transaction, _ []model.Category) (llm.BatchResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchCalls++
	c.batchSizes = append(c.batchSizes, len(txns))
	if c.batchErr != nil {
		return llm.BatchResponse{}, c.batchErr
	}
	if c.batch != nil {
		return c.batch(txns), nil
	}

	var resp llm.BatchResponse
	for i, txn := range txns {
		if d, ok := c.decisions[txn.MerchantText()]; ok {
			resp.Decisions = append(resp.Decisions, llm.BatchDecision{
				Index:      i + 1,
				Category:   d.Category,
				Confidence: d.Confidence,
			})
		}
	}
	return resp, nil
}

func (c *fakeClassifier) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.batchCalls
}

// fakeEmbedder returns fixed vectors per input text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	texts   []string
	mu      sync.Mutex
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (e *fakeEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.texts)
}

// corpusWrite is one observed UpsertByHash call.
type corpusWrite struct {
	hash         string
	categoryName string
	embedding    []float32
}

// recordingCorpus observes writes on their way to a real corpus store.
type recordingCorpus struct {
	service.CorpusStore
	writes      []corpusWrite
	searchErr   error
	upsertErr   error
	mu          sync.Mutex
	searchCalls int
}

func (c *recordingCorpus) NearestNeighbors(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Neighbor, error) {
	c.mu.Lock()
	c.searchCalls++
	err := c.searchErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.CorpusStore.NearestNeighbors(ctx, embedding, minSimilarity, limit)
}

func (c *recordingCorpus) UpsertByHash(ctx context.Context, hash string, embedding []float32, categoryName string, tuning model.Reinforcement) (*model.CorpusRecord, error) {
	c.mu.Lock()
	c.writes = append(c.writes, corpusWrite{hash: hash, categoryName: categoryName, embedding: embedding})
	err := c.upsertErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.CorpusStore.UpsertByHash(ctx, hash, embedding, categoryName, tuning)
}

// failingRules reads through to a real rule store but fails every write.
type failingRules struct {
	service.RuleStore
	err error
}

func (f failingRules) UpsertRule(context.Context, string, string, string, model.Reinforcement) (*model.Rule, error) {
	return nil, f.err
}
