package pgcorpus

import (
	"context"
	"os"
	"testing"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/merchant"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tuning = model.Reinforcement{Seed: 0.8, Step: 0.05, Cap: 1.0}

func TestFormatParseVector(t *testing.T) {
	tests := []struct {
		name string
		want string
		in   []float32
	}{
		{name: "simple", in: []float32{1, 0.5, -2}, want: "[1,0.5,-2]"},
		{name: "small", in: []float32{1e-7}, want: "[1e-07]"},
		{name: "empty", in: []float32{}, want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted := formatVector(tt.in)
			assert.Equal(t, tt.want, formatted)

			parsed, err := parseVector(formatted)
			require.NoError(t, err)
			assert.Equal(t, tt.in, parsed)
		})
	}

	_, err := parseVector("not a vector")
	require.Error(t, err)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), "", 3)
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = Open(context.Background(), "postgres://localhost/x", 0)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WANTNOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WANTNOT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.pool.Exec(ctx, `DROP TABLE IF EXISTS anonymized_merchants`)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore_Integration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	hash := merchant.Hash("blue bottle coffee")

	_, err := store.FindByHash(ctx, hash)
	require.ErrorIs(t, err, common.ErrNotFound)

	created, err := store.UpsertByHash(ctx, hash, []float32{1, 0, 0}, "Coffee", tuning)
	require.NoError(t, err)
	assert.Equal(t, "coffee", created.CategoryName)
	assert.Equal(t, 1, created.UsageCount)
	assert.InDelta(t, 0.8, created.Confidence, 1e-9)

	updated, err := store.UpsertByHash(ctx, hash, []float32{0, 1, 0}, "Dining", tuning)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 2, updated.UsageCount)
	assert.InDelta(t, 0.85, updated.Confidence, 1e-9)
	assert.Equal(t, []float32{1, 0, 0}, updated.Embedding)
	assert.Equal(t, "coffee", updated.CategoryName)

	_, err = store.UpsertByHash(ctx, merchant.Hash("shell"), []float32{0, 0, 1}, "Transportation", tuning)
	require.NoError(t, err)

	neighbors, err := store.NearestNeighbors(ctx, []float32{0.9, 0.1, 0}, 0.75, 5)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, hash, neighbors[0].Record.MerchantHash)
	assert.Greater(t, neighbors[0].Similarity, 0.9)

	_, err = store.NearestNeighbors(ctx, []float32{1, 0}, 0.75, 5)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStore_UpsertRejectsPlaintext(t *testing.T) {
	store := &Store{dimensions: 3}

	_, err := store.UpsertByHash(context.Background(), "blue bottle coffee", []float32{1, 0, 0}, "Coffee", tuning)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
