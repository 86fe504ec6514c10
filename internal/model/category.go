package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryType indicates whether a category is for income or expense.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether t is a known category type.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category is a user-owned label for transactions.
type Category struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	BudgetLimit decimal.NullDecimal
	ID          string
	UserID      string
	Name        string
	Color       string
	Type        CategoryType
}

// IsIncome reports whether the category tracks income.
func (c Category) IsIncome() bool {
	return c.Type == CategoryTypeIncome
}

// MatchesName compares names the way categorization does: case-insensitive,
// ignoring surrounding whitespace.
func (c Category) MatchesName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}

// FindCategoryByName returns the first category whose name matches name.
func FindCategoryByName(categories []Category, name string) (Category, bool) {
	if strings.TrimSpace(name) == "" {
		return Category{}, false
	}
	for _, c := range categories {
		if c.MatchesName(name) {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryNames returns the display names of categories in order.
func CategoryNames(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
