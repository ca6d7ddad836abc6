package core

// Category classifies an expense. The set is closed; stored values that do
// not match a member decode to Other instead of failing.
type Category string

const (
	Staff   Category = "STAFF"
	Travel  Category = "TRAVEL"
	Food    Category = "FOOD"
	Utility Category = "UTILITY"
	Other   Category = "OTHER"
)

// Categories returns every member in display order.
func Categories() []Category {
	return []Category{Staff, Travel, Food, Utility, Other}
}

// ParseCategory decodes a stored or user-provided category value.
// Unknown or corrupt values fall back to Other.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return Other
}

func (c Category) Valid() bool {
	switch c {
	case Staff, Travel, Food, Utility, Other:
		return true
	}
	return false
}

// DisplayName returns the human-readable label used in exports.
func (c Category) DisplayName() string {
	switch c {
	case Staff:
		return "Staff"
	case Travel:
		return "Travel"
	case Food:
		return "Food"
	case Utility:
		return "Utility"
	default:
		return "Other"
	}
}

// Icon returns the emoji associated with the category.
func (c Category) Icon() string {
	switch c {
	case Staff:
		return "👥"
	case Travel:
		return "✈️"
	case Food:
		return "🍽️"
	case Utility:
		return "⚡"
	default:
		return "📦"
	}
}
