package categories

// Fixture represents a predefined set of categories for testing.
type Fixture interface {
	// Name returns the fixture's descriptive name.
	Name() string

	// Categories returns the category names included in this fixture.
	Categories() []CategoryName
}

type fixture struct {
	name       string
	categories []CategoryName
}

func (f *fixture) Name() string               { return f.name }
func (f *fixture) Categories() []CategoryName { return f.categories }

// Predefined fixtures for common test scenarios.
var (
	// FixtureNone seeds no categories.
	FixtureNone = &fixture{name: "None"}

	// FixtureMinimal provides the absolute minimum categories for basic tests.
	FixtureMinimal = &fixture{
		name: "Minimal",
		categories: []CategoryName{
			CategoryGroceries,
			CategoryDining,
			CategoryTransportation,
		},
	}

	// FixtureStandard covers common spending plus one income category.
	FixtureStandard = &fixture{
		name: "Standard",
		categories: []CategoryName{
			CategoryGroceries,
			CategoryDining,
			CategoryCoffee,
			CategoryShopping,
			CategoryTransportation,
			CategorySubscriptions,
			CategoryUtilities,
			CategoryEntertainment,
			CategorySalary,
		},
	}

	// FixtureComprehensive provides every named category.
	FixtureComprehensive = &fixture{
		name: "Comprehensive",
		categories: []CategoryName{
			CategoryGroceries,
			CategoryDining,
			CategoryCoffee,
			CategoryShopping,
			CategoryTransportation,
			CategorySubscriptions,
			CategoryUtilities,
			CategoryEntertainment,
			CategoryTravel,
			CategoryHealth,
			CategorySalary,
			CategoryInterest,
			CategoryRefunds,
		},
	}
)

// CompositeFixture combines multiple fixtures, dropping duplicates.
type CompositeFixture struct {
	name     string
	fixtures []Fixture
}

// NewCompositeFixture creates a fixture that combines multiple fixtures.
func NewCompositeFixture(name string, fixtures ...Fixture) Fixture {
	return &CompositeFixture{name: name, fixtures: fixtures}
}

// Name implements Fixture.
func (c *CompositeFixture) Name() string { return c.name }

// Categories implements Fixture.
func (c *CompositeFixture) Categories() []CategoryName {
	seen := make(map[CategoryName]struct{})
	var categories []CategoryName

	for _, f := range c.fixtures {
		for _, cat := range f.Categories() {
			if _, exists := seen[cat]; !exists {
				seen[cat] = struct{}{}
				categories = append(categories, cat)
			}
		}
	}

	return categories
}
