// Package engine implements the categorization cascade and the learning
// loop that feeds it.
//
// A transaction is tried against the user's own rules first, then against
// the anonymized community corpus, then against a language model. The first
// tier whose confidence clears its bar wins; otherwise the best candidate
// seen is returned. Every confirmed categorization is fed back as a rule and,
// optionally, as an anonymized corpus contribution.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
)

// Dependencies are the collaborators of an Engine. Corpus, Embedder and
// Classifier are optional; leaving one out disables the tiers that need it.
type Dependencies struct {
	Users        service.UserDirectory
	Categories   service.CategoryDirectory
	Rules        service.RuleStore
	Transactions service.TransactionStore
	Corpus       service.CorpusStore
	Embedder     service.Embedder
	Classifier   Classifier
	Logger       *slog.Logger
}

// Engine is the categorization facade used by the CLI and the HTTP API.
type Engine struct {
	users        service.UserDirectory
	categories   service.CategoryDirectory
	transactions service.TransactionStore
	classifier   Classifier
	cascade      *Cascade
	learner      *Learner
	logger       *slog.Logger
	config       Config
}

// New creates an engine with the default configuration.
func New(deps Dependencies) (*Engine, error) {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(deps Dependencies, cfg Config) (*Engine, error) {
	if deps.Users == nil || deps.Categories == nil || deps.Rules == nil || deps.Transactions == nil {
		return nil, fmt.Errorf("%w: engine requires users, categories, rules and transactions", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := common.LoggerOrDefault(deps.Logger).With("component", "engine")

	var vector, generative Matcher
	if deps.Corpus != nil {
		vector = NewSimilarityMatcher(deps.Corpus, deps.Embedder, deps.Categories, cfg)
	}
	if deps.Classifier != nil {
		generative = NewGenerativeMatcher(deps.Classifier, deps.Categories, cfg.LLMTimeout)
	}

	return &Engine{
		users:        deps.Users,
		categories:   deps.Categories,
		transactions: deps.Transactions,
		classifier:   deps.Classifier,
		cascade: NewCascade(
			NewRuleMatcher(deps.Rules, deps.Categories),
			vector,
			generative,
			cfg.Thresholds,
			logger,
		),
		learner: NewLearner(deps.Rules, deps.Corpus, deps.Embedder, deps.Categories, cfg, logger),
		logger:  logger,
		config:  cfg,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) ensureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", common.ErrInvalidInput)
	}
	if _, err := e.users.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return nil
}

// ownedTransaction loads a transaction and checks it belongs to userID.
func (e *Engine) ownedTransaction(ctx context.Context, userID, txnID string) (*model.Transaction, error) {
	txn, err := e.transactions.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", txnID, err)
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", txnID, common.ErrForbidden)
	}
	return txn, nil
}

// ownedCategory loads a category and checks it belongs to userID.
func (e *Engine) ownedCategory(ctx context.Context, userID, categoryID string) (*model.Category, error) {
	category, err := e.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", categoryID, err)
	}
	if category.UserID != userID {
		return nil, fmt.Errorf("category %s: %w", categoryID, common.ErrForbidden)
	}
	return category, nil
}

// CategorizeTransaction runs the cascade for one transaction. Only an
// unknown user is an error; every tier failure degrades to a lower tier or
// the empty result.
func (e *Engine) CategorizeTransaction(ctx context.Context, userID string, txn model.Transaction) (model.Categorization, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return model.Categorization{}, err
	}
	return e.cascade.Run(ctx, userID, txn), nil
}

// LearnFromCategorization feeds a confirmed categorization back into the
// user's rules and, when contribute is set, into the community corpus.
func (e *Engine) LearnFromCategorization(ctx context.Context, userID string, txn model.Transaction, categoryID string, contribute bool) error {
	if err := e.ensureUser(ctx, userID); err != nil {
		return err
	}
	return e.learner.Learn(ctx, userID, txn, categoryID, contribute)
}

// CategorizeManually assigns a category chosen by the user and learns from
// it. A failed rule update is logged; the assignment is still returned.
func (e *Engine) CategorizeManually(ctx context.Context, userID, txnID, categoryID string, contribute bool) (model.Categorization, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return model.Categorization{}, err
	}
	txn, err := e.ownedTransaction(ctx, userID, txnID)
	if err != nil {
		return model.Categorization{}, err
	}
	category, err := e.ownedCategory(ctx, userID, categoryID)
	if err != nil {
		return model.Categorization{}, err
	}

	result := model.Manual(*category)
	if _, err := e.transactions.ApplyCategorization(ctx, txn.ID, result); err != nil {
		return model.Categorization{}, fmt.Errorf("failed to save categorization: %w", err)
	}
	e.learnAfterWrite(ctx, userID, *txn, category.ID, contribute)
	return result, nil
}

// learnAfterWrite learns from a categorization that is already stored.
// The stored assignment stands even when the rule update fails.
func (e *Engine) learnAfterWrite(ctx context.Context, userID string, txn model.Transaction, categoryID string, contribute bool) {
	if err := e.learner.Learn(ctx, userID, txn, categoryID, contribute); err != nil {
		e.logger.Warn("learning from categorization failed",
			"user_id", userID,
			"transaction_id", txn.ID,
			"error", err)
	}
}

// BulkCategorize assigns one category to many transactions. Ownership of
// every transaction is checked before anything is written.
func (e *Engine) BulkCategorize(ctx context.Context, userID string, txnIDs []string, categoryID string, contribute bool) (int, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return 0, err
	}
	if len(txnIDs) == 0 {
		return 0, fmt.Errorf("%w: no transactions given", common.ErrInvalidInput)
	}
	category, err := e.ownedCategory(ctx, userID, categoryID)
	if err != nil {
		return 0, err
	}

	txns := make([]*model.Transaction, 0, len(txnIDs))
	for _, id := range txnIDs {
		txn, err := e.ownedTransaction(ctx, userID, id)
		if err != nil {
			return 0, err
		}
		txns = append(txns, txn)
	}

	result := model.Manual(*category)
	updated := 0
	for _, txn := range txns {
		changed, err := e.transactions.ApplyCategorization(ctx, txn.ID, result)
		if err != nil {
			return updated, fmt.Errorf("failed to save categorization for %s: %w", txn.ID, err)
		}
		if changed {
			updated++
		}
		e.learnAfterWrite(ctx, userID, *txn, category.ID, contribute)
	}
	return updated, nil
}

// AutoCategorize runs the cascade for a stored transaction and writes the
// result back. Manual assignments are returned untouched.
func (e *Engine) AutoCategorize(ctx context.Context, userID, txnID string) (model.Categorization, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return model.Categorization{}, err
	}
	txn, err := e.ownedTransaction(ctx, userID, txnID)
	if err != nil {
		return model.Categorization{}, err
	}
	if txn.Method == model.MethodManual {
		return e.currentCategorization(ctx, txn)
	}

	result := e.cascade.Run(ctx, userID, *txn)
	if result.IsEmpty() {
		return result, nil
	}
	if _, err := e.transactions.ApplyCategorization(ctx, txn.ID, result); err != nil {
		return model.Categorization{}, fmt.Errorf("failed to save categorization: %w", err)
	}
	return result, nil
}

func (e *Engine) currentCategorization(ctx context.Context, txn *model.Transaction) (model.Categorization, error) {
	category, err := e.categories.GetCategory(ctx, txn.CategoryID)
	if err != nil {
		return model.Categorization{}, fmt.Errorf("failed to load category %s: %w", txn.CategoryID, err)
	}
	return model.Categorization{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Method:       txn.Method,
		Confidence:   txn.Confidence,
	}, nil
}

// AutoCategorizeUncategorized runs AutoCategorize over up to limit
// uncategorized transactions. progress, when set, is called after each one.
func (e *Engine) AutoCategorizeUncategorized(ctx context.Context, userID string, limit int, progress func(done, total int)) (model.BatchStats, error) {
	var stats model.BatchStats
	if err := e.ensureUser(ctx, userID); err != nil {
		return stats, err
	}

	txns, err := e.transactions.ListUncategorized(ctx, userID, limit)
	if err != nil {
		return stats, fmt.Errorf("failed to list uncategorized transactions: %w", err)
	}

	for i, txn := range txns {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		result := e.cascade.Run(ctx, userID, txn)
		if !result.IsEmpty() {
			if _, err := e.transactions.ApplyCategorization(ctx, txn.ID, result); err != nil {
				return stats, fmt.Errorf("failed to save categorization for %s: %w", txn.ID, err)
			}
		}
		stats.Record(result.Method)
		if progress != nil {
			progress(i+1, len(txns))
		}
	}
	return stats, nil
}

// AcceptSuggestions writes batch suggestions the user approved and learns
// from each. Suggestions for missing or foreign transactions are skipped.
func (e *Engine) AcceptSuggestions(ctx context.Context, userID string, suggestions []model.Suggestion, contribute bool) (int, error) {
	if err := e.ensureUser(ctx, userID); err != nil {
		return 0, err
	}

	accepted := 0
	for _, s := range suggestions {
		txn, err := e.ownedTransaction(ctx, userID, s.TransactionID)
		if err != nil {
			if common.IsIntegrityError(err) {
				e.logger.Warn("skipping suggestion", "transaction_id", s.TransactionID, "error", err)
				continue
			}
			return accepted, err
		}
		category, err := e.ownedCategory(ctx, userID, s.CategoryID)
		if err != nil {
			if common.IsIntegrityError(err) {
				e.logger.Warn("skipping suggestion", "category_id", s.CategoryID, "error", err)
				continue
			}
			return accepted, err
		}

		result := s.Categorization()
		result.CategoryName = category.Name
		if !result.Method.Valid() || result.Method == model.MethodNone {
			return accepted, fmt.Errorf("%w: suggestion method %q", common.ErrInvalidInput, s.Method)
		}

		changed, err := e.transactions.ApplyCategorization(ctx, txn.ID, result)
		if err != nil {
			return accepted, fmt.Errorf("failed to save suggestion for %s: %w", txn.ID, err)
		}
		if !changed {
			continue
		}
		accepted++
		e.learnAfterWrite(ctx, userID, *txn, category.ID, contribute)
	}
	return accepted, nil
}
