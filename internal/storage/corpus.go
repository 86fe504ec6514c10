package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/google/uuid"
)

const corpusColumns = `id, merchant_hash, embedding, category_name, confidence, usage_count, last_updated`

func scanCorpusRecord(row rowScanner) (model.CorpusRecord, error) {
	var r model.CorpusRecord
	var embedding string
	if err := row.Scan(&r.ID, &r.MerchantHash, &embedding, &r.CategoryName, &r.Confidence, &r.UsageCount, &r.LastUpdated); err != nil {
		return r, err
	}
	decoded, err := decodeEmbedding(embedding)
	if err != nil {
		return r, err
	}
	r.Embedding = decoded
	return r, nil
}

// FindByHash returns the corpus record for a merchant hash.
func (s *SQLiteStorage) FindByHash(ctx context.Context, merchantHash string) (*model.CorpusRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findByHashTx(ctx, s.db, merchantHash)
}

func (s *SQLiteStorage) findByHashTx(ctx context.Context, q queryable, merchantHash string) (*model.CorpusRecord, error) {
	record, err := scanCorpusRecord(q.QueryRowContext(ctx, `
		SELECT `+corpusColumns+` FROM anonymized_merchants WHERE merchant_hash = ?
	`, merchantHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find corpus record: %w", err)
	}
	return &record, nil
}

// NearestNeighbors scans the corpus and ranks records by cosine similarity.
// SQLite has no vector index, so this is linear in the corpus size; use the
// pgvector store for large shared corpora.
func (s *SQLiteStorage) NearestNeighbors(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Neighbor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", common.ErrInvalidInput)
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+corpusColumns+` FROM anonymized_merchants`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var neighbors []model.Neighbor
	for rows.Next() {
		record, err := scanCorpusRecord(rows)
		if err != nil {
			s.logger.Warn("Skipping unreadable corpus record", "error", err)
			continue
		}
		if len(record.Embedding) != len(embedding) {
			continue
		}
		similarity := cosineSimilarity(embedding, record.Embedding)
		if similarity > minSimilarity {
			neighbors = append(neighbors, model.Neighbor{Record: record, Similarity: similarity})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}

// UpsertByHash inserts a corpus record or, when the hash is already known,
// bumps its usage count and confidence. The stored category name is
// lowercased and the existing embedding is kept on update.
func (s *SQLiteStorage) UpsertByHash(ctx context.Context, merchantHash string, embedding []float32, categoryName string, tuning model.Reinforcement) (*model.CorpusRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMerchantHash(merchantHash); err != nil {
		return nil, err
	}
	categoryName = strings.ToLower(strings.TrimSpace(categoryName))
	if err := validateString(categoryName, "category name"); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", common.ErrInvalidInput)
	}
	if err := validateTuning(tuning); err != nil {
		return nil, err
	}

	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	var record *model.CorpusRecord
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anonymized_merchants (`+corpusColumns+`)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(merchant_hash) DO UPDATE SET
				usage_count = anonymized_merchants.usage_count + 1,
				confidence = ROUND(MIN(?, anonymized_merchants.confidence + ?), 6),
				last_updated = excluded.last_updated
		`, uuid.NewString(), merchantHash, encoded, categoryName, tuning.Initial(), time.Now().UTC(),
			tuning.Cap, tuning.Step)
		if err != nil {
			return fmt.Errorf("failed to upsert corpus record: %w", err)
		}

		record, err = s.findByHashTx(ctx, tx, merchantHash)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}
