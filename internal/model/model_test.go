package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReinforcement(t *testing.T) {
	r := Reinforcement{Seed: 0.9, Step: 0.05, Cap: 0.99}

	assert.InDelta(t, 0.9, r.Initial(), 1e-9)
	assert.InDelta(t, 0.95, r.Next(0.9), 1e-9)
	assert.InDelta(t, 0.99, r.Next(0.97), 1e-9)
	assert.InDelta(t, 0.99, r.Next(0.99), 1e-9)

	capped := Reinforcement{Seed: 1.5, Step: 0.1, Cap: 0.99}
	assert.InDelta(t, 0.99, capped.Initial(), 1e-9)
}

func TestFindCategoryByName(t *testing.T) {
	categories := []Category{
		{ID: "1", Name: "Groceries"},
		{ID: "2", Name: " Coffee Shops "},
	}

	tests := []struct {
		name   string
		query  string
		wantID string
		found  bool
	}{
		{name: "exact", query: "Groceries", wantID: "1", found: true},
		{name: "case insensitive", query: "GROCERIES", wantID: "1", found: true},
		{name: "whitespace", query: "coffee shops", wantID: "2", found: true},
		{name: "missing", query: "Travel"},
		{name: "blank", query: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCategoryByName(categories, tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestCategorizationJSON(t *testing.T) {
	t.Run("empty result uses nulls", func(t *testing.T) {
		data, err := json.Marshal(Categorization{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"categoryId":null,"categoryName":null,"method":null,"confidence":0}`, string(data))

		var back Categorization
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, back.IsEmpty())
	})

	t.Run("match", func(t *testing.T) {
		data, err := json.Marshal(Manual(Category{ID: "c1", Name: "Rent"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"categoryId":"c1","categoryName":"Rent","method":"manual","confidence":1}`, string(data))
	})
}

func TestMethodValid(t *testing.T) {
	for _, m := range []Method{MethodNone, MethodRule, MethodVector, MethodLLM, MethodManual} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Method("guess").Valid())
}

func TestBatchStatsRecord(t *testing.T) {
	var s BatchStats
	for _, m := range []Method{MethodRule, MethodRule, MethodVector, MethodLLM, MethodNone, MethodManual} {
		s.Record(m)
	}
	assert.Equal(t, BatchStats{Rule: 2, Vector: 1, LLM: 1, Unresolved: 2}, s)
}

func TestTransaction(t *testing.T) {
	txn := Transaction{
		Date:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString("12.5"),
		Name:      "SQ *BLUE BOTTLE 123",
		AccountID: "acct",
	}

	assert.Equal(t, "SQ *BLUE BOTTLE 123", txn.MerchantText())
	assert.False(t, txn.IsIncome())
	assert.False(t, txn.IsCategorized())

	hash := txn.GenerateHash()
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, txn.GenerateHash())

	txn.MerchantName = "Blue Bottle"
	assert.Equal(t, "Blue Bottle", txn.MerchantText())
	assert.NotEqual(t, hash, txn.GenerateHash())

	txn.Amount = decimal.RequireFromString("-100")
	assert.True(t, txn.IsIncome())
}
