package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/google/uuid"
)

const categoryColumns = `id, user_id, name, type, budget_limit, color, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (model.Category, error) {
	var c model.Category
	var categoryType string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &categoryType, &c.BudgetLimit, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	c.Type = model.CategoryType(categoryType)
	return c, err
}

// CreateCategory creates a category for category.UserID. An empty ID is
// generated and an empty Type defaults to expense.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category model.Category) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(&category); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.Type == "" {
		category.Type = model.CategoryTypeExpense
	}
	category.Name = strings.TrimSpace(category.Name)
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, category.ID, category.UserID, category.Name, string(category.Type),
		category.BudgetLimit, category.Color, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%w: category %q", common.ErrDuplicateEntry, category.Name)
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("%w: %s", common.ErrUserNotFound, category.UserID)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &category, nil
}

// GetCategory retrieves a category by ID.
func (s *SQLiteStorage) GetCategory(ctx context.Context, categoryID string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	category, err := scanCategory(s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE id = ?
	`, categoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrCategoryNotFound, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return &category, nil
}

// ListCategories returns a user's categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ?
		ORDER BY name COLLATE NOCASE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// UpdateCategory rewrites the mutable fields of a category.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category.ID, "category ID"); err != nil {
		return err
	}
	if err := validateCategory(&category); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	if category.Type == "" {
		category.Type = model.CategoryTypeExpense
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, type = ?, budget_limit = ?, color = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, strings.TrimSpace(category.Name), string(category.Type), category.BudgetLimit,
		category.Color, time.Now().UTC(), category.ID, category.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: category %q", common.ErrDuplicateEntry, category.Name)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", common.ErrCategoryNotFound, category.ID)
	}

	return nil
}

// DeleteCategory removes a category. Transactions filed under it become
// uncategorized; rules pointing at it are kept and stop matching.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, categoryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category_id = NULL, categorization_method = NULL, confidence = 0
			WHERE category_id = ?
		`, categoryID); err != nil {
			return fmt.Errorf("failed to clear transactions: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID)
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", common.ErrCategoryNotFound, categoryID)
		}
		return nil
	})
}
