// Package testutil provides shared fixtures for tests that need a real
// database: an in-memory SQLite store with one user and a seeded category
// set.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/storage"
	"github.com/Veraticus/wantnot/internal/testutil/categories"
	"github.com/shopspring/decimal"
)

var externalSeq atomic.Int64

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	User       *model.User
	t          *testing.T
	Categories categories.Categories
}

// SetupTestDB creates a migrated in-memory database with one user owning
// the fixture's categories. Cleanup is registered on t.
func SetupTestDB(t *testing.T, fixture categories.Fixture) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	user, err := store.CreateUser(ctx, "test@example.com", "Test User")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	cats, err := categories.NewBuilder(t).WithFixture(fixture).Build(ctx, store, user.ID)
	if err != nil {
		t.Fatalf("failed to build categories: %v", err)
	}

	return &TestDB{
		Storage:    store,
		User:       user,
		Categories: cats,
		t:          t,
	}
}

// MustCategory returns the seeded category with the given name.
func (db *TestDB) MustCategory(name categories.CategoryName) model.Category {
	db.t.Helper()
	return db.Categories.MustFind(db.t, name)
}

// AddUser creates another user with its own copy of the fixture.
func (db *TestDB) AddUser(email string, fixture categories.Fixture) (*model.User, categories.Categories) {
	db.t.Helper()
	ctx := context.Background()

	user, err := db.Storage.CreateUser(ctx, email, "Other User")
	if err != nil {
		db.t.Fatalf("failed to create user %s: %v", email, err)
	}
	cats, err := categories.NewBuilder(db.t).WithFixture(fixture).Build(ctx, db.Storage, user.ID)
	if err != nil {
		db.t.Fatalf("failed to build categories: %v", err)
	}
	return user, cats
}

// AddTransaction stores an uncategorized transaction for the test user and
// returns it with its generated ID. amount follows the sign convention of
// model.Transaction: positive for money out.
func (db *TestDB) AddTransaction(name, merchantName string, amount float64) model.Transaction {
	db.t.Helper()
	return db.AddTransactionFor(db.User.ID, name, merchantName, amount)
}

// AddTransactionFor is AddTransaction for an arbitrary user.
func (db *TestDB) AddTransactionFor(userID, name, merchantName string, amount float64) model.Transaction {
	db.t.Helper()

	txns := []model.Transaction{{
		UserID:       userID,
		AccountID:    "checking",
		ExternalID:   fmt.Sprintf("%s-%d", name, externalSeq.Add(1)),
		Date:         time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Name:         name,
		MerchantName: merchantName,
		Amount:       decimal.NewFromFloat(amount),
	}}
	if _, err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to save transaction %q: %v", name, err)
	}
	return txns[0]
}

// MustTransaction reloads a transaction from storage.
func (db *TestDB) MustTransaction(id string) model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransaction(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %s: %v", id, err)
	}
	return *txn
}
