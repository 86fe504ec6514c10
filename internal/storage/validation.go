// Package storage provides the SQLite persistence layer for wantnot.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidTuning      = errors.New("invalid reinforcement tuning")
	ErrInvalidHash        = errors.New("merchant hash must be a hex sha256 digest")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrInvalidInput, ErrEmptyString, paramName)
	}
	return nil
}

func validateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", common.ErrInvalidInput, c)
	}
	return nil
}

func validateTuning(t model.Reinforcement) error {
	if t.Seed < 0 || t.Seed > 1 || t.Cap < 0 || t.Cap > 1 || t.Step < 0 {
		return fmt.Errorf("%w: %w: %+v", common.ErrInvalidInput, ErrInvalidTuning, t)
	}
	return nil
}

// validateMerchantHash rejects anything that is not a SHA-256 hex digest, so
// plaintext merchant strings cannot reach the community corpus.
func validateMerchantHash(hash string) error {
	if !merchant.IsHash(hash) {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, ErrInvalidHash)
	}
	return nil
}

func validateCategory(c *model.Category) error {
	if c == nil {
		return fmt.Errorf("%w: nil category", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if c.Type != "" && !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCategory, c.Type)
	}
	if c.BudgetLimit.Valid && c.BudgetLimit.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative budget limit", ErrInvalidCategory)
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTransaction)
	}
	if !txn.Method.Valid() {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidTransaction, txn.Method)
	}
	return validateConfidence(txn.Confidence)
}
