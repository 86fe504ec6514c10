package categories

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/wantnot/internal/model"
)

// Creator is the storage surface the builder needs.
type Creator interface {
	CreateCategory(ctx context.Context, category model.Category) (*model.Category, error)
}

// Builder provides a fluent interface for constructing test categories.
type Builder interface {
	// WithCategory adds a single category to the builder.
	WithCategory(name CategoryName) Builder

	// WithCategories adds multiple categories to the builder.
	WithCategories(names ...CategoryName) Builder

	// WithFixture adds categories from a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build creates the categories for userID in order of addition.
	Build(ctx context.Context, store Creator, userID string) (Categories, error)
}

// CategoryName represents a strongly-typed category name.
type CategoryName string

// String returns the string representation of the category name.
func (c CategoryName) String() string {
	return string(c)
}

// Common category names used across tests.
const (
	CategoryGroceries      CategoryName = "Groceries"
	CategoryDining         CategoryName = "Dining"
	CategoryCoffee         CategoryName = "Coffee"
	CategoryShopping       CategoryName = "Shopping"
	CategoryTransportation CategoryName = "Transportation"
	CategorySubscriptions  CategoryName = "Subscriptions"
	CategoryUtilities      CategoryName = "Utilities"
	CategoryEntertainment  CategoryName = "Entertainment"
	CategoryTravel         CategoryName = "Travel"
	CategoryHealth         CategoryName = "Health"
	CategorySalary         CategoryName = "Salary"
	CategoryInterest       CategoryName = "Interest"
	CategoryRefunds        CategoryName = "Refunds"
)

// IncomeCategories are the names created with the income type.
var IncomeCategories = map[CategoryName]struct{}{
	CategorySalary:   {},
	CategoryInterest: {},
	CategoryRefunds:  {},
}

// TypeOf returns the category type used when seeding name.
func TypeOf(name CategoryName) model.CategoryType {
	if _, ok := IncomeCategories[name]; ok {
		return model.CategoryTypeIncome
	}
	return model.CategoryTypeExpense
}

// Categories represents a collection of created test categories.
type Categories []model.Category

// Find returns the category with the given name, or nil if not found.
func (c Categories) Find(name CategoryName) *model.Category {
	for i := range c {
		if c[i].Name == name.String() {
			return &c[i]
		}
	}
	return nil
}

// MustFind returns the category with the given name, or fails the test if not found.
func (c Categories) MustFind(t *testing.T, name CategoryName) model.Category {
	t.Helper()
	cat := c.Find(name)
	if cat == nil {
		t.Fatalf("category %q not found in test data", name)
	}
	return *cat
}

// Names returns all category names as a slice of strings.
func (c Categories) Names() []string {
	return model.CategoryNames(c)
}

type categoryBuilder struct {
	t     *testing.T
	seen  map[CategoryName]struct{}
	names []CategoryName
}

// NewBuilder creates a new category builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &categoryBuilder{
		t:    t,
		seen: make(map[CategoryName]struct{}),
	}
}

func (b *categoryBuilder) WithCategory(name CategoryName) Builder {
	if _, ok := b.seen[name]; !ok {
		b.seen[name] = struct{}{}
		b.names = append(b.names, name)
	}
	return b
}

func (b *categoryBuilder) WithCategories(names ...CategoryName) Builder {
	for _, name := range names {
		b.WithCategory(name)
	}
	return b
}

func (b *categoryBuilder) WithFixture(fixture Fixture) Builder {
	return b.WithCategories(fixture.Categories()...)
}

func (b *categoryBuilder) Build(ctx context.Context, store Creator, userID string) (Categories, error) {
	b.t.Helper()

	result := make(Categories, 0, len(b.names))
	for _, name := range b.names {
		created, err := store.CreateCategory(ctx, model.Category{
			UserID: userID,
			Name:   name.String(),
			Type:   TypeOf(name),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		result = append(result, *created)
	}
	return result, nil
}
