package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/wantnot/internal/model"
)

// BatchSuggest proposes categories for up to limit uncategorized
// transactions without writing anything. Tiers 1 and 2 run per transaction
// with the batch thresholds; everything still open goes to the model in
// chunked calls, and each transaction then resolves against its retained
// candidates exactly as the single-transaction cascade does.
func (e *Engine) BatchSuggest(ctx context.Context, userID string, limit int) (model.BatchResult, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return model.BatchResult{}, err
	}
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	txns, err := e.transactions.ListUncategorized(ctx, userID, limit)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("failed to list uncategorized transactions: %w", err)
	}
	categories, err := e.categories.ListCategories(ctx, userID)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("failed to list categories: %w", err)
	}

	runs := e.prefilter(ctx, userID, txns)

	pending := make([]*run, 0, len(runs))
	for _, r := range runs {
		if r.state == StateTryLLM {
			pending = append(pending, r)
		}
	}

	recommendations := e.classifyPending(ctx, pending, categories)
	for _, r := range pending {
		e.cascade.drive(ctx, r, StateDone)
	}

	result := model.BatchResult{
		Suggestions:                make([]model.Suggestion, 0, len(runs)),
		NewCategoryRecommendations: recommendations,
	}
	for _, r := range runs {
		result.Stats.Record(r.result.Method)
		if r.result.IsEmpty() {
			continue
		}
		result.Suggestions = append(result.Suggestions, model.Suggestion{
			TransactionID: r.txn.ID,
			CategoryID:    r.result.CategoryID,
			CategoryName:  r.result.CategoryName,
			Method:        r.result.Method,
			Confidence:    r.result.Confidence,
		})
	}

	e.logger.Info("batch suggestions ready",
		"user_id", userID,
		"transactions", len(txns),
		"rule", result.Stats.Rule,
		"vector", result.Stats.Vector,
		"llm", result.Stats.LLM,
		"unresolved", result.Stats.Unresolved)

	return result, nil
}

// prefilter runs tiers 1 and 2 for every transaction in parallel. Each run
// either finishes or pauses in front of TRY_LLM.
func (e *Engine) prefilter(ctx context.Context, userID string, txns []model.Transaction) []*run {
	runs := make([]*run, len(txns))
	if len(txns) == 0 {
		return runs
	}

	work := make(chan int, len(txns))
	for i := range txns {
		work <- i
	}
	close(work)

	workers := min(e.config.BatchWorkers, len(txns))
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				r := e.cascade.newRun(userID, txns[i], e.config.BatchThresholds)
				e.cascade.drive(ctx, r, StateTryLLM)
				runs[i] = r
			}
		}()
	}
	wg.Wait()

	return runs
}

// classifyPending sends the paused runs to the model in chunks and loads
// each answer into its run's Tier 3 slot. Failed chunks leave their runs
// without a model candidate.
func (e *Engine) classifyPending(ctx context.Context, pending []*run, categories []model.Category) []model.NewCategoryRecommendation {
	presets := make([]Candidate, len(pending))
	recommendations := newRecommendationSet(categories)

	if e.classifier != nil && len(categories) > 0 {
		chunkSize := e.config.LLMBatchLimit
		for start := 0; start < len(pending); start += chunkSize {
			end := min(start+chunkSize, len(pending))
			chunk := pending[start:end]

			txns := make([]model.Transaction, len(chunk))
			for i, r := range chunk {
				txns[i] = r.txn
			}

			callCtx, cancel := context.WithTimeout(ctx, e.config.LLMTimeout)
			resp, err := e.classifier.ClassifyBatch(callCtx, txns, categories)
			cancel()
			if err != nil {
				e.logger.Warn("batch classification failed",
					"chunk_start", start,
					"chunk_size", len(chunk),
					"error", err)
				continue
			}
			if resp.Skipped > 0 {
				e.logger.Debug("skipped malformed batch lines", "count", resp.Skipped)
			}

			for _, d := range resp.Decisions {
				if d.Index < 1 || d.Index > len(chunk) {
					continue
				}
				presets[start+d.Index-1] = decisionCandidate(d.Category, d.Confidence, categories)
			}
			for _, nc := range resp.NewCategories {
				ids := make([]string, 0, len(nc.Indexes))
				for _, idx := range nc.Indexes {
					if idx >= 1 && idx <= len(chunk) {
						ids = append(ids, chunk[idx-1].txn.ID)
					}
				}
				recommendations.add(nc.Name, nc.Description, nc.Type, ids)
			}
		}
	}

	for i, r := range pending {
		r.matchers[tierLLM] = presetMatcher{candidate: presets[i]}
	}
	return recommendations.list()
}

// recommendationSet merges new-category proposals by name across chunks
// and drops names the user already has.
type recommendationSet struct {
	existing []model.Category
	index    map[string]int
	items    []model.NewCategoryRecommendation
}

func newRecommendationSet(existing []model.Category) *recommendationSet {
	return &recommendationSet{existing: existing, index: make(map[string]int)}
}

func (s *recommendationSet) add(name, description string, typ model.CategoryType, txnIDs []string) {
	name = strings.TrimSpace(name)
	if name == "" || len(txnIDs) == 0 {
		return
	}
	if _, exists := model.FindCategoryByName(s.existing, name); exists {
		return
	}

	key := strings.ToLower(name)
	if i, ok := s.index[key]; ok {
		s.items[i].TransactionIDs = append(s.items[i].TransactionIDs, txnIDs...)
		return
	}
	if !typ.Valid() {
		typ = model.CategoryTypeExpense
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, model.NewCategoryRecommendation{
		Name:           name,
		Description:    description,
		Type:           typ,
		TransactionIDs: txnIDs,
	})
}

func (s *recommendationSet) list() []model.NewCategoryRecommendation {
	if s.items == nil {
		return []model.NewCategoryRecommendation{}
	}
	return s.items
}
