package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/google/uuid"
)

const transactionColumns = `id, user_id, account_id, external_id, date, name, merchant_name, amount,
	category_hints, category_id, categorization_method, confidence, created_at`

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		txn        model.Transaction
		hints      string
		categoryID sql.NullString
		method     sql.NullString
	)
	err := row.Scan(&txn.ID, &txn.UserID, &txn.AccountID, &txn.ExternalID, &txn.Date, &txn.Name,
		&txn.MerchantName, &txn.Amount, &hints, &categoryID, &method, &txn.Confidence, &txn.CreatedAt)
	if err != nil {
		return txn, err
	}

	if hints != "" {
		if err := json.Unmarshal([]byte(hints), &txn.CategoryHints); err != nil {
			return txn, fmt.Errorf("failed to decode category hints: %w", err)
		}
	}
	txn.CategoryID = categoryID.String
	txn.Method = model.Method(method.String)

	return txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveTransactions inserts transactions, skipping any whose (user, external
// ID) pair is already stored. It returns the number of rows inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, fmt.Errorf("%w: transactions", ErrEmptySlice)
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC()
		for i := range transactions {
			txn := &transactions[i]
			if txn.ID == "" {
				txn.ID = uuid.NewString()
			}
			if txn.ExternalID == "" {
				txn.ExternalID = txn.GenerateHash()
			}
			if txn.CreatedAt.IsZero() {
				txn.CreatedAt = now
			}
			if txn.Method == model.MethodManual {
				txn.Confidence = model.ManualConfidence
			}

			hints, err := json.Marshal(nonNilStrings(txn.CategoryHints))
			if err != nil {
				return fmt.Errorf("failed to encode category hints: %w", err)
			}

			result, err := stmt.ExecContext(ctx,
				txn.ID, txn.UserID, txn.AccountID, txn.ExternalID, txn.Date, txn.Name,
				txn.MerchantName, txn.Amount, string(hints), nullString(txn.CategoryID),
				nullString(string(txn.Method)), txn.Confidence, txn.CreatedAt)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: transaction %s references an unknown user or category", common.ErrInvalidInput, txn.ID)
				}
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
			if n, err := result.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ?
	`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

// ListUncategorized returns a user's uncategorized transactions, newest first.
// A non-positive limit returns all of them.
func (s *SQLiteStorage) ListUncategorized(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND category_id IS NULL
		ORDER BY date DESC, id
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uncategorized transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// ApplyCategorization writes a categorization outcome onto a transaction.
// Manual results always win and are stored at confidence 1.0; automated
// results leave manually categorized transactions untouched.
func (s *SQLiteStorage) ApplyCategorization(ctx context.Context, transactionID string, result model.Categorization) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if result.IsEmpty() {
		return false, nil
	}
	if result.Method == model.MethodNone || !result.Method.Valid() {
		return false, fmt.Errorf("%w: unknown method %q", common.ErrInvalidInput, result.Method)
	}
	if err := validateConfidence(result.Confidence); err != nil {
		return false, err
	}

	query := `
		UPDATE transactions
		SET category_id = ?, categorization_method = ?, confidence = ?
		WHERE id = ?`
	if result.Method == model.MethodManual {
		result.Confidence = model.ManualConfidence
	} else {
		query += ` AND (categorization_method IS NULL OR categorization_method != 'manual')`
	}

	updated, err := s.db.ExecContext(ctx, query, result.CategoryID, string(result.Method), result.Confidence, transactionID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: %s", common.ErrCategoryNotFound, result.CategoryID)
		}
		return false, fmt.Errorf("failed to apply categorization: %w", err)
	}

	rows, err := updated.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id = ?`, transactionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", common.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}

	return false, nil
}
