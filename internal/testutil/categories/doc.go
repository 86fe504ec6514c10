// Package categories seeds per-user categories for tests.
//
// Basic usage:
//
//	db := testutil.SetupTestDB(t, categories.FixtureStandard)
//	groceries := db.Categories.MustFind(t, categories.CategoryGroceries)
//
// Custom sets are built with the fluent Builder:
//
//	cats, err := categories.NewBuilder(t).
//		WithFixture(categories.FixtureMinimal).
//		WithCategory("Pet Supplies").
//		Build(ctx, store, userID)
//
// Names listed in IncomeCategories are created with the income type; every
// other name is an expense category.
package categories
