package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an imported financial event.
//
// Amount is signed: positive values are expenses (debits), negative values
// are income (credits).
type Transaction struct {
	Date          time.Time
	CreatedAt     time.Time
	Amount        decimal.Decimal
	ID            string
	UserID        string
	AccountID     string
	ExternalID    string   // Identifier assigned by the importing source
	Name          string   // Raw transaction description
	MerchantName  string   // Cleaned merchant name, may be empty
	CategoryHints []string // Upstream category hints, most general first
	CategoryID    string   // Empty when uncategorized
	Method        Method
	Confidence    float64
}

// MerchantText returns the string used to identify the merchant.
func (t Transaction) MerchantText() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// IsIncome reports whether the amount is a credit.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsNegative()
}

// IsCategorized reports whether a category has been assigned.
func (t Transaction) IsCategorized() bool {
	return t.CategoryID != ""
}

// GenerateHash creates a stable key for duplicate detection when the source
// provides no identifier of its own.
func (t Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.MerchantText(),
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
