package api

import (
	"time"

	"github.com/Veraticus/wantnot/internal/model"
	"github.com/shopspring/decimal"
)

type categoryResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Type        model.CategoryType  `json:"type"`
	Color       string              `json:"color"`
	BudgetLimit decimal.NullDecimal `json:"budgetLimit"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func newCategoryResponse(c model.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Type:        c.Type,
		Color:       c.Color,
		BudgetLimit: c.BudgetLimit,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type categoryRequest struct {
	Name        string              `json:"name" binding:"required"`
	Type        model.CategoryType  `json:"type"`
	Color       string              `json:"color"`
	BudgetLimit decimal.NullDecimal `json:"budgetLimit"`
}

func (r categoryRequest) category(userID string) model.Category {
	return model.Category{
		UserID:      userID,
		Name:        r.Name,
		Type:        r.Type,
		Color:       r.Color,
		BudgetLimit: r.BudgetLimit,
	}
}

type transactionResponse struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"accountId"`
	Date          time.Time       `json:"date"`
	Name          string          `json:"name"`
	MerchantName  string          `json:"merchantName,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	CategoryHints []string        `json:"categoryHints"`
	CategoryID    *string         `json:"categoryId"`
	Method        *model.Method   `json:"autoCategorizationMethod"`
	Confidence    float64         `json:"autoCategorizationConfidence"`
}

func newTransactionResponse(t model.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Date:          t.Date,
		Name:          t.Name,
		MerchantName:  t.MerchantName,
		Amount:        t.Amount,
		CategoryHints: t.CategoryHints,
		Confidence:    t.Confidence,
	}
	if resp.CategoryHints == nil {
		resp.CategoryHints = []string{}
	}
	if t.IsCategorized() {
		resp.CategoryID = &t.CategoryID
		resp.Method = &t.Method
	}
	return resp
}

type categorizeRequest struct {
	CategoryID string `json:"categoryId" binding:"required"`
	Contribute *bool  `json:"contributeToCommunity"`
}

type bulkCategorizeRequest struct {
	TransactionIDs []string `json:"transactionIds" binding:"required,min=1"`
	CategoryID     string   `json:"categoryId" binding:"required"`
	Contribute     *bool    `json:"contributeToCommunity"`
}

type acceptSuggestionsRequest struct {
	Suggestions []model.Suggestion `json:"suggestions" binding:"required"`
	Contribute  *bool              `json:"contributeToCommunity"`
}

// contributeOr resolves an optional opt-in flag.
func contributeOr(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}
