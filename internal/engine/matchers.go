package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/llm"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
)

// Matcher is one tier of the cascade.
type Matcher interface {
	Match(ctx context.Context, userID string, txn model.Transaction) (Candidate, error)
}

// Classifier is the generative model used by Tier 3.
type Classifier interface {
	Classify(ctx context.Context, txn model.Transaction, categories []model.Category) (llm.Decision, error)
	ClassifyBatch(ctx context.Context, txns []model.Transaction, categories []model.Category) (llm.BatchResponse, error)
}

// RuleMatcher looks the merchant up in the user's own rule memory.
type RuleMatcher struct {
	rules      service.RuleStore
	categories service.CategoryDirectory
}

// NewRuleMatcher creates the Tier 1 matcher.
func NewRuleMatcher(rules service.RuleStore, categories service.CategoryDirectory) *RuleMatcher {
	return &RuleMatcher{rules: rules, categories: categories}
}

// Match implements Matcher.
func (m *RuleMatcher) Match(ctx context.Context, userID string, txn model.Transaction) (Candidate, error) {
	pattern := merchant.Normalize(txn.MerchantText())
	if pattern == "" {
		return NoMatch(), nil
	}

	rule, err := m.rules.FindRule(ctx, userID, pattern)
	if errors.Is(err, common.ErrNotFound) {
		return NoMatch(), nil
	}
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to find rule: %w", err)
	}

	// Rules outlive their categories; a dangling rule is a miss.
	category, err := m.categories.GetCategory(ctx, rule.CategoryID)
	if errors.Is(err, common.ErrCategoryNotFound) {
		return NoMatch(), nil
	}
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to load rule category: %w", err)
	}
	if category.UserID != userID {
		return NoMatch(), nil
	}

	return Found(model.Categorization{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Method:       model.MethodRule,
		Confidence:   rule.Confidence,
	}), nil
}

// SimilarityMatcher searches the anonymized corpus for merchants close to
// this one and maps the best neighbor onto the user's categories by name.
type SimilarityMatcher struct {
	corpus        service.CorpusStore
	embedder      service.Embedder
	categories    service.CategoryDirectory
	minSimilarity float64
	limit         int
	timeout       time.Duration
}

// NewSimilarityMatcher creates the Tier 2 matcher. embedder may be nil, in
// which case only merchants already in the corpus can be matched.
func NewSimilarityMatcher(corpus service.CorpusStore, embedder service.Embedder, categories service.CategoryDirectory, cfg Config) *SimilarityMatcher {
	return &SimilarityMatcher{
		corpus:        corpus,
		embedder:      embedder,
		categories:    categories,
		minSimilarity: cfg.MinSimilarity,
		limit:         cfg.NeighborLimit,
		timeout:       cfg.EmbeddingTimeout,
	}
}

// Match implements Matcher.
func (m *SimilarityMatcher) Match(ctx context.Context, userID string, txn model.Transaction) (Candidate, error) {
	normalized, hash := merchant.Key(txn.MerchantText())
	if normalized == "" {
		return NoMatch(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	embedding, err := m.embedding(ctx, normalized, hash)
	if err != nil {
		return NoMatch(), err
	}
	if len(embedding) == 0 {
		return NoMatch(), nil
	}

	neighbors, err := m.corpus.NearestNeighbors(ctx, embedding, m.minSimilarity, m.limit)
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to search corpus: %w", err)
	}
	if len(neighbors) == 0 || neighbors[0].Similarity <= m.minSimilarity {
		return NoMatch(), nil
	}
	best := neighbors[0]

	categories, err := m.categories.ListCategories(ctx, userID)
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to list categories: %w", err)
	}
	category, ok := model.FindCategoryByName(categories, best.Record.CategoryName)
	if !ok {
		return NoMatch(), nil
	}

	return Found(model.Categorization{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Method:       model.MethodVector,
		Confidence:   best.Similarity,
	}), nil
}

// embedding reuses the stored vector for a known merchant and only calls
// the provider for new ones. Only the normalized text leaves the process.
func (m *SimilarityMatcher) embedding(ctx context.Context, normalized, hash string) ([]float32, error) {
	record, err := m.corpus.FindByHash(ctx, hash)
	switch {
	case err == nil && len(record.Embedding) > 0:
		return record.Embedding, nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("failed to look up corpus record: %w", err)
	}

	if m.embedder == nil {
		return nil, nil
	}
	embedding, err := m.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to embed merchant: %w", err)
	}
	return embedding, nil
}

// GenerativeMatcher asks the language model to pick one of the user's
// categories.
type GenerativeMatcher struct {
	classifier Classifier
	categories service.CategoryDirectory
	timeout    time.Duration
}

// NewGenerativeMatcher creates the Tier 3 matcher.
func NewGenerativeMatcher(classifier Classifier, categories service.CategoryDirectory, timeout time.Duration) *GenerativeMatcher {
	return &GenerativeMatcher{classifier: classifier, categories: categories, timeout: timeout}
}

// Match implements Matcher.
func (m *GenerativeMatcher) Match(ctx context.Context, userID string, txn model.Transaction) (Candidate, error) {
	categories, err := m.categories.ListCategories(ctx, userID)
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return NoMatch(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	decision, err := m.classifier.Classify(ctx, txn, categories)
	if err != nil {
		return NoMatch(), fmt.Errorf("failed to classify: %w", err)
	}
	return decisionCandidate(decision.Category, decision.Confidence, categories), nil
}

// decisionCandidate maps a model answer onto the user's categories. Names
// the user does not have are discarded.
func decisionCandidate(name string, confidence float64, categories []model.Category) Candidate {
	if name == "" {
		return NoMatch()
	}
	category, ok := model.FindCategoryByName(categories, name)
	if !ok {
		return NoMatch()
	}
	return Found(model.Categorization{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Method:       model.MethodLLM,
		Confidence:   confidence,
	})
}

// presetMatcher replays a candidate computed elsewhere, such as one answer
// from a batched model call.
type presetMatcher struct {
	candidate Candidate
}

func (m presetMatcher) Match(context.Context, string, model.Transaction) (Candidate, error) {
	return m.candidate, nil
}
