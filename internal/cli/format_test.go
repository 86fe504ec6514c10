package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCategorization(t *testing.T) {
	tests := []struct {
		name     string
		result   model.Categorization
		contains []string
	}{
		{
			name:     "empty result",
			result:   model.Categorization{},
			contains: []string{"no confident match"},
		},
		{
			name:     "rule match",
			result:   model.Categorization{CategoryID: "c1", CategoryName: "Groceries", Method: model.MethodRule, Confidence: 0.95},
			contains: []string{RuleIcon, "Groceries", "via rule", "95%"},
		},
		{
			name:     "model match",
			result:   model.Categorization{CategoryID: "c2", CategoryName: "Dining", Method: model.MethodLLM, Confidence: 0.72},
			contains: []string{RobotIcon, "Dining", "via llm", "72%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatCategorization(tt.result)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Contains(t, FormatAmount(decimal.RequireFromString("42.5")), "$42.50")
	assert.Contains(t, FormatAmount(decimal.RequireFromString("-1200")), "+$1200.00")
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable([]string{"Name", "Type"}, [][]string{
		{"Groceries", "expense"},
		{"Salary", "income"},
	})

	lines := strings.Split(out, "\n")
	var nameRows []string
	for _, l := range lines {
		if strings.Contains(l, "Groceries") || strings.Contains(l, "Salary") {
			nameRows = append(nameRows, l)
		}
	}
	assert.Len(t, nameRows, 2)
	assert.Equal(t, strings.Index(nameRows[0], "expense"), strings.Index(nameRows[1], "income"))
}

func TestRenderCategories(t *testing.T) {
	assert.Contains(t, RenderCategories(nil), "No categories yet")

	out := RenderCategories([]model.Category{
		{ID: "c1", Name: "Groceries", Type: model.CategoryTypeExpense, BudgetLimit: decimal.NewNullDecimal(decimal.NewFromInt(400))},
		{ID: "c2", Name: "Salary", Type: model.CategoryTypeIncome},
	})
	assert.Contains(t, out, "$400.00")
	assert.Contains(t, out, "income")
}

func TestRenderTransactions(t *testing.T) {
	out := RenderTransactions([]model.Transaction{{
		ID:     "t1",
		Date:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Name:   "WHOLE FOODS MARKET #10234 AUSTIN TX WITH A VERY LONG DESCRIPTION",
		Amount: decimal.RequireFromString("42.17"),
	}})
	assert.Contains(t, out, "2024-03-15")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "$42.17")
}

func TestRenderSuggestions(t *testing.T) {
	out := RenderSuggestions([]model.Suggestion{
		{TransactionID: "t1", CategoryName: "Coffee", Method: model.MethodVector, Confidence: 0.97},
		{TransactionID: "t2", CategoryName: "Dining", Method: model.MethodLLM, Confidence: 0.8},
	}, map[string]string{"t1": "BLUE BOTTLE"})

	assert.Contains(t, out, "BLUE BOTTLE")
	assert.Contains(t, out, "t2")
	assert.Contains(t, out, "vector")
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(model.BatchStats{Rule: 2, Vector: 1, LLM: 3, Unresolved: 4})
	assert.Contains(t, out, "Rules: 2")
	assert.Contains(t, out, "Total: 10")
}

func TestRenderRecommendations(t *testing.T) {
	tests := []struct {
		name    string
		recs    []model.NewCategoryRecommendation
		want    []string
		wantOut bool
	}{
		{
			name:    "none",
			recs:    nil,
			wantOut: false,
		},
		{
			name: "titled list",
			recs: []model.NewCategoryRecommendation{
				{Name: "Pet Care", Type: model.CategoryTypeExpense, Description: "vet and grooming", TransactionIDs: []string{"t1", "t2"}},
			},
			want:    []string{"Suggested new categories", "Pet Care", "2 transactions", "vet and grooming"},
			wantOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderRecommendations(tt.recs)
			if !tt.wantOut {
				assert.Empty(t, out)
				return
			}
			assert.True(t, strings.HasPrefix(out, FormatTitle("Suggested new categories")))
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}
