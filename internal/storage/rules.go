package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/google/uuid"
)

const ruleColumns = `id, user_id, merchant_pattern, category_id, confidence, match_count, last_matched, created_at, updated_at`

func scanRule(row rowScanner) (model.Rule, error) {
	var r model.Rule
	err := row.Scan(&r.ID, &r.UserID, &r.MerchantPattern, &r.CategoryID, &r.Confidence,
		&r.MatchCount, &r.LastMatched, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// FindRule returns the highest-confidence rule for (userID, merchantPattern).
func (s *SQLiteStorage) FindRule(ctx context.Context, userID, merchantPattern string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findRuleTx(ctx, s.db, userID, merchantPattern)
}

func (s *SQLiteStorage) findRuleTx(ctx context.Context, q queryable, userID, merchantPattern string) (*model.Rule, error) {
	rule, err := scanRule(q.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM merchant_rules
		WHERE user_id = ? AND merchant_pattern = ?
		ORDER BY confidence DESC
		LIMIT 1
	`, userID, merchantPattern))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	return &rule, nil
}

// UpsertRule creates or reinforces the rule for (userID, merchantPattern) in
// a single statement, so concurrent confirmations cannot lose updates.
func (s *SQLiteStorage) UpsertRule(ctx context.Context, userID, merchantPattern, categoryID string, tuning model.Reinforcement) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "user ID"); err != nil {
		return nil, err
	}
	if err := validateString(merchantPattern, "merchant pattern"); err != nil {
		return nil, err
	}
	if err := validateString(categoryID, "category ID"); err != nil {
		return nil, err
	}
	if err := validateTuning(tuning); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var rule *model.Rule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO merchant_rules (`+ruleColumns+`)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT(user_id, merchant_pattern) DO UPDATE SET
				category_id = excluded.category_id,
				confidence = ROUND(MIN(?, merchant_rules.confidence + ?), 6),
				match_count = merchant_rules.match_count + 1,
				last_matched = excluded.last_matched,
				updated_at = excluded.updated_at
		`, uuid.NewString(), userID, merchantPattern, categoryID, tuning.Initial(), now, now, now,
			tuning.Cap, tuning.Step)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", common.ErrUserNotFound, userID)
			}
			return fmt.Errorf("failed to upsert rule: %w", err)
		}

		rule, err = s.findRuleTx(ctx, tx, userID, merchantPattern)
		return err
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// ListRules returns a user's rules, most confident first.
func (s *SQLiteStorage) ListRules(ctx context.Context, userID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM merchant_rules
		WHERE user_id = ?
		ORDER BY confidence DESC, merchant_pattern
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}
