// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/wantnot/internal/model"
)

// UserDirectory resolves users.
type UserDirectory interface {
	// GetUser returns common.ErrUserNotFound for unknown users.
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// CategoryDirectory exposes a user's categories.
type CategoryDirectory interface {
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
	// GetCategory returns common.ErrCategoryNotFound when the category is absent.
	GetCategory(ctx context.Context, categoryID string) (*model.Category, error)
}

// RuleStore is the per-user categorization memory.
type RuleStore interface {
	// FindRule returns the highest-confidence rule for the pair, or
	// common.ErrNotFound.
	FindRule(ctx context.Context, userID, merchantPattern string) (*model.Rule, error)
	// UpsertRule atomically creates the rule at tuning.Seed or, when one
	// exists, retargets it to categoryID and reinforces it by tuning.Step.
	UpsertRule(ctx context.Context, userID, merchantPattern, categoryID string, tuning model.Reinforcement) (*model.Rule, error)
}

// CorpusStore is the anonymized cross-user merchant corpus.
type CorpusStore interface {
	// FindByHash returns common.ErrNotFound when no record exists.
	FindByHash(ctx context.Context, merchantHash string) (*model.CorpusRecord, error)
	// NearestNeighbors returns records with cosine similarity strictly above
	// minSimilarity, best first, at most limit of them.
	NearestNeighbors(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Neighbor, error)
	// UpsertByHash atomically inserts the record at tuning.Seed or, when one
	// exists, increments its usage count and reinforces it by tuning.Step.
	UpsertByHash(ctx context.Context, merchantHash string, embedding []float32, categoryName string, tuning model.Reinforcement) (*model.CorpusRecord, error)
}

// TransactionStore reads and writes back transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	// GetTransaction returns common.ErrTransactionNotFound when absent.
	GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error)
	ListUncategorized(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	// ApplyCategorization writes the outcome fields. Automated results never
	// replace a manual assignment; the returned bool reports whether the row
	// changed.
	ApplyCategorization(ctx context.Context, transactionID string, result model.Categorization) (bool, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Storage is the full persistence layer used by the CLI and HTTP server.
type Storage interface {
	UserDirectory
	CategoryDirectory
	RuleStore
	CorpusStore
	TransactionStore

	CreateUser(ctx context.Context, email, name string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateCategory(ctx context.Context, category model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, category model.Category) error
	DeleteCategory(ctx context.Context, categoryID string) error

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
