// Package pgcorpus stores the anonymized merchant corpus in PostgreSQL with
// the pgvector extension, so several deployments can share one corpus and
// neighbour search runs on an HNSW index instead of a linear scan.
package pgcorpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ service.CorpusStore = (*Store)(nil)

// Store implements service.CorpusStore on a pgx connection pool.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// Open connects to dsn. dimensions fixes the vector column width and must
// match the embedding model.
func Open(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: corpus.postgres_dsn", common.ErrMissingConfig)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: corpus.dimensions must be positive", common.ErrInvalidConfig)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Store{pool: pool, dimensions: dimensions}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the extension, table and index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS anonymized_merchants (
			id            UUID PRIMARY KEY,
			merchant_hash CHAR(64) NOT NULL UNIQUE,
			embedding     vector(%d) NOT NULL,
			category_name TEXT NOT NULL,
			confidence    DOUBLE PRECISION NOT NULL,
			usage_count   INTEGER NOT NULL DEFAULT 1,
			last_updated  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS anonymized_merchants_embedding_idx
			ON anonymized_merchants USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate corpus: %w", err)
		}
	}
	return nil
}

const selectColumns = `id::text, merchant_hash, embedding::text, category_name, confidence, usage_count, last_updated`

func scanRecord(row pgx.Row) (model.CorpusRecord, error) {
	var (
		r         model.CorpusRecord
		embedding string
	)
	if err := row.Scan(&r.ID, &r.MerchantHash, &embedding, &r.CategoryName, &r.Confidence, &r.UsageCount, &r.LastUpdated); err != nil {
		return r, err
	}

	decoded, err := parseVector(embedding)
	if err != nil {
		return r, err
	}
	r.Embedding = decoded
	return r, nil
}

// FindByHash implements service.CorpusStore.
func (s *Store) FindByHash(ctx context.Context, merchantHash string) (*model.CorpusRecord, error) {
	record, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM anonymized_merchants WHERE merchant_hash = $1`, merchantHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find corpus record: %w", err)
	}
	return &record, nil
}

// NearestNeighbors implements service.CorpusStore using the cosine distance
// operator. Similarity is 1 - distance.
func (s *Store) NearestNeighbors(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Neighbor, error) {
	if err := s.checkDimensions(embedding); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`, 1 - (embedding <=> $1::vector) AS similarity
		FROM anonymized_merchants
		WHERE 1 - (embedding <=> $1::vector) > $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, formatVector(embedding), minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search corpus: %w", err)
	}
	defer rows.Close()

	var neighbors []model.Neighbor
	for rows.Next() {
		var (
			n          model.Neighbor
			vec        string
			record     = &n.Record
			similarity float64
		)
		if err := rows.Scan(&record.ID, &record.MerchantHash, &vec, &record.CategoryName, &record.Confidence,
			&record.UsageCount, &record.LastUpdated, &similarity); err != nil {
			return nil, fmt.Errorf("failed to read neighbour: %w", err)
		}
		if record.Embedding, err = parseVector(vec); err != nil {
			return nil, err
		}
		n.Similarity = similarity
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search corpus: %w", err)
	}
	return neighbors, nil
}

// UpsertByHash implements service.CorpusStore with a single
// INSERT ... ON CONFLICT statement.
func (s *Store) UpsertByHash(ctx context.Context, merchantHash string, embedding []float32, categoryName string, tuning model.Reinforcement) (*model.CorpusRecord, error) {
	if !merchant.IsHash(merchantHash) {
		return nil, fmt.Errorf("%w: merchant hash", common.ErrInvalidInput)
	}
	categoryName = strings.ToLower(strings.TrimSpace(categoryName))
	if categoryName == "" {
		return nil, fmt.Errorf("%w: empty category name", common.ErrInvalidInput)
	}
	if err := s.checkDimensions(embedding); err != nil {
		return nil, err
	}

	record, err := scanRecord(s.pool.QueryRow(ctx, `
		INSERT INTO anonymized_merchants (id, merchant_hash, embedding, category_name, confidence, usage_count, last_updated)
		VALUES ($1, $2, $3::vector, $4, $5, 1, now())
		ON CONFLICT (merchant_hash) DO UPDATE SET
			usage_count = anonymized_merchants.usage_count + 1,
			confidence = round(LEAST($6::numeric, anonymized_merchants.confidence::numeric + $7::numeric), 6)::double precision,
			last_updated = now()
		RETURNING `+selectColumns,
		uuid.NewString(), merchantHash, formatVector(embedding), categoryName, tuning.Initial(), tuning.Cap, tuning.Step))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert corpus record: %w", err)
	}
	return &record, nil
}

func (s *Store) checkDimensions(embedding []float32) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("%w: embedding has %d dimensions, corpus expects %d",
			common.ErrInvalidInput, len(embedding), s.dimensions)
	}
	return nil
}

// formatVector renders the pgvector text form, e.g. [1,0.5,-2].
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector reads the pgvector text form, which is also a JSON array.
func parseVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return v, nil
}
