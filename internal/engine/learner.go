package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
)

// Learner turns confirmed categorizations into rules and, when the user
// allows it, into anonymized corpus contributions.
type Learner struct {
	rules        service.RuleStore
	corpus       service.CorpusStore
	embedder     service.Embedder
	categories   service.CategoryDirectory
	logger       *slog.Logger
	ruleTuning   model.Reinforcement
	corpusTuning model.Reinforcement
	embedTimeout time.Duration
}

// NewLearner creates a learner. corpus and embedder may be nil.
func NewLearner(rules service.RuleStore, corpus service.CorpusStore, embedder service.Embedder, categories service.CategoryDirectory, cfg Config, logger *slog.Logger) *Learner {
	return &Learner{
		rules:        rules,
		corpus:       corpus,
		embedder:     embedder,
		categories:   categories,
		logger:       common.LoggerOrDefault(logger),
		ruleTuning:   cfg.RuleTuning,
		corpusTuning: cfg.CorpusTuning,
		embedTimeout: cfg.EmbeddingTimeout,
	}
}

// Learn records that userID filed txn under categoryID. The rule write is
// the primary effect and its failure is returned. The corpus contribution
// is best effort.
func (l *Learner) Learn(ctx context.Context, userID string, txn model.Transaction, categoryID string, contribute bool) error {
	category, err := l.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}
	if category.UserID != userID {
		return fmt.Errorf("category %s: %w", categoryID, common.ErrForbidden)
	}

	normalized := merchant.Normalize(txn.MerchantText())
	if normalized == "" {
		l.logger.Debug("nothing to learn from empty merchant", "transaction_id", txn.ID)
		return nil
	}

	rule, err := l.rules.UpsertRule(ctx, userID, normalized, category.ID, l.ruleTuning)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	l.logger.Debug("rule reinforced",
		"user_id", userID,
		"category", category.Name,
		"confidence", rule.Confidence,
		"match_count", rule.MatchCount)

	if contribute {
		l.contribute(ctx, normalized, category.Name)
	}
	return nil
}

// contribute adds the merchant to the corpus keyed by its hash. Only the
// normalized merchant text is sent to the embedding provider; the corpus
// itself never sees it.
func (l *Learner) contribute(ctx context.Context, normalized, categoryName string) {
	if l.corpus == nil {
		return
	}
	hash := merchant.Hash(normalized)

	var embedding []float32
	record, err := l.corpus.FindByHash(ctx, hash)
	switch {
	case err == nil:
		embedding = record.Embedding
	case errors.Is(err, common.ErrNotFound):
	default:
		l.logger.Warn("corpus lookup failed", "error", err)
		return
	}

	if len(embedding) == 0 {
		if l.embedder == nil {
			l.logger.Debug("skipping corpus contribution without embedder")
			return
		}
		embedCtx, cancel := context.WithTimeout(ctx, l.embedTimeout)
		embedding, err = l.embedder.Embed(embedCtx, normalized)
		cancel()
		if err != nil {
			l.logger.Warn("corpus contribution skipped", "error", err)
			return
		}
	}

	if _, err := l.corpus.UpsertByHash(ctx, hash, embedding, categoryName, l.corpusTuning); err != nil {
		l.logger.Warn("corpus contribution failed", "error", err)
	}
}
