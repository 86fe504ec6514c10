package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/llm"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/testutil"
	"github.com/Veraticus/wantnot/internal/testutil/categories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleMatcher(t *testing.T) {
	h := newHarness(t, categories.FixtureStandard)
	groceries := h.db.MustCategory(categories.CategoryGroceries)
	h.seedRule(t, "Trader Joe's", groceries, 0.8)
	matcher := NewRuleMatcher(h.db.Storage, h.db.Storage)

	tests := []struct {
		name    string
		txn     model.Transaction
		wantHit bool
	}{
		{name: "merchant name wins over name", txn: model.Transaction{Name: "TJ #552", MerchantName: "TRADER JOE'S"}, wantHit: true},
		{name: "falls back to name", txn: model.Transaction{Name: "trader   joe's"}, wantHit: true},
		{name: "different merchant", txn: model.Transaction{Name: "TRADER JOES 552"}},
		{name: "empty merchant", txn: model.Transaction{Name: "***"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := matcher.Match(context.Background(), h.db.User.ID, tt.txn)
			require.NoError(t, err)

			result, ok := candidate.Get()
			assert.Equal(t, tt.wantHit, ok)
			if tt.wantHit {
				assert.Equal(t, groceries.ID, result.CategoryID)
				assert.Equal(t, model.MethodRule, result.Method)
				assert.InDelta(t, 0.8, result.Confidence, 1e-9)
			}
		})
	}
}

func TestRuleMatcher_IsPerUser(t *testing.T) {
	h := newHarness(t, categories.FixtureStandard)
	h.seedRule(t, "Costco", h.db.MustCategory(categories.CategoryGroceries), 1)
	other, _ := h.db.AddUser("other@example.com", categories.FixtureStandard)

	candidate, err := NewRuleMatcher(h.db.Storage, h.db.Storage).Match(context.Background(), other.ID, model.Transaction{Name: "COSTCO"})
	require.NoError(t, err)
	_, ok := candidate.Get()
	assert.False(t, ok)
}

func newSimilarityMatcher(h *testHarness) *SimilarityMatcher {
	return NewSimilarityMatcher(h.corpus, h.embedder, h.db.Storage, DefaultConfig())
}

func TestSimilarityMatcher_ReusesStoredEmbedding(t *testing.T) {
	h := newHarness(t, categories.FixtureStandard)
	h.seedCorpus(t, "Shell Oil", "Transportation", []float32{0, 0, 1})

	candidate, err := newSimilarityMatcher(h).Match(context.Background(), h.db.User.ID, model.Transaction{Name: "SHELL OIL"})
	require.NoError(t, err)

	result, ok := candidate.Get()
	require.True(t, ok)
	assert.Equal(t, "Transportation", result.CategoryName)
	assert.InDelta(t, 1.0, result.Confidence, 1e-6)
	assert.Zero(t, h.embedder.calls())
}

func TestSimilarityMatcher_NoMatch(t *testing.T) {
	tests := []struct {
		setup func(h *testHarness)
		name  string
	}{
		{
			name: "similarity below floor is excluded",
			setup: func(h *testHarness) {
				h.seedCorpus(t, "a", "Groceries", []float32{1, 0})
				h.embedder.vectors["shell"] = []float32{0.7, 0.714}
			},
		},
		{
			name: "community category unknown to user",
			setup: func(h *testHarness) {
				h.seedCorpus(t, "chevron", "Fuel", []float32{1, 0})
				h.embedder.vectors["shell"] = []float32{1, 0}
			},
		},
		{
			name: "empty corpus",
			setup: func(h *testHarness) {
				h.embedder.vectors["shell"] = []float32{1, 0}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, categories.FixtureStandard)
			tt.setup(h)

			candidate, err := newSimilarityMatcher(h).Match(context.Background(), h.db.User.ID, model.Transaction{Name: "Shell"})
			require.NoError(t, err)
			_, ok := candidate.Get()
			assert.False(t, ok)
		})
	}
}

func TestSimilarityMatcher_Errors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		h := newHarness(t, categories.FixtureStandard)
		h.embedder.err = errProvider

		_, err := newSimilarityMatcher(h).Match(context.Background(), h.db.User.ID, model.Transaction{Name: "Shell"})
		require.ErrorIs(t, err, errProvider)
	})

	t.Run("search failure", func(t *testing.T) {
		h := newHarness(t, categories.FixtureStandard)
		h.embedder.vectors["shell"] = []float32{1, 0}
		h.corpus.searchErr = errProvider

		_, err := newSimilarityMatcher(h).Match(context.Background(), h.db.User.ID, model.Transaction{Name: "Shell"})
		require.ErrorIs(t, err, errProvider)
	})

	t.Run("no embedder", func(t *testing.T) {
		h := newHarness(t, categories.FixtureStandard)
		matcher := NewSimilarityMatcher(h.corpus, nil, h.db.Storage, DefaultConfig())

		candidate, err := matcher.Match(context.Background(), h.db.User.ID, model.Transaction{Name: "Shell"})
		require.NoError(t, err)
		_, ok := candidate.Get()
		assert.False(t, ok)
		assert.Zero(t, h.corpus.searchCalls)
	})
}

func TestGenerativeMatcher(t *testing.T) {
	tests := []struct {
		classifier *fakeClassifier
		fixture    categories.Fixture
		name       string
		wantName   string
		wantCalls  int
		wantErr    bool
	}{
		{
			name:       "case-insensitive category match",
			fixture:    categories.FixtureStandard,
			classifier: &fakeClassifier{decisions: map[string]llm.Decision{"Lyft": {Category: "TRANSPORTATION", Confidence: 0.9}}},
			wantName:   "Transportation",
			wantCalls:  1,
		},
		{
			name:       "unknown category discarded",
			fixture:    categories.FixtureStandard,
			classifier: &fakeClassifier{decisions: map[string]llm.Decision{"Lyft": {Category: "Rideshare", Confidence: 0.9}}},
			wantCalls:  1,
		},
		{
			name:       "declined",
			fixture:    categories.FixtureStandard,
			classifier: &fakeClassifier{decisions: map[string]llm.Decision{"Lyft": {Confidence: 0}}},
			wantCalls:  1,
		},
		{
			name:       "no categories skips the provider",
			fixture:    categories.FixtureNone,
			classifier: &fakeClassifier{decisions: map[string]llm.Decision{"Lyft": {Category: "Transportation", Confidence: 0.9}}},
		},
		{
			name:       "provider error",
			fixture:    categories.FixtureStandard,
			classifier: &fakeClassifier{err: errProvider},
			wantCalls:  1,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, tt.fixture)
			matcher := NewGenerativeMatcher(tt.classifier, db.Storage, time.Second)

			candidate, err := matcher.Match(context.Background(), db.User.ID, model.Transaction{Name: "LYFT *RIDE", MerchantName: "Lyft"})
			calls, _ := tt.classifier.counts()
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			result, ok := candidate.Get()
			assert.Equal(t, tt.wantName != "", ok)
			if ok {
				assert.Equal(t, tt.wantName, result.CategoryName)
				assert.Equal(t, model.MethodLLM, result.Method)
			}
		})
	}
}
