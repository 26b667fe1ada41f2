package enums

import "fmt"

// Category identifies which synchronized collection an operation targets.
type Category string

const (
	CategoryCart      Category = "cart"
	CategoryFavorites Category = "favorites"
)

var validCategories = []Category{
	CategoryCart,
	CategoryFavorites,
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the category is one of the known collections.
func (c Category) IsValid() bool {
	for _, candidate := range validCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// UsesQuantity reports whether items in this category carry a quantity.
func (c Category) UsesQuantity() bool {
	return c == CategoryCart
}

// Categories returns all known collection categories.
func Categories() []Category {
	out := make([]Category, len(validCategories))
	copy(out, validCategories)
	return out
}

// ParseCategory converts raw input into a Category.
func ParseCategory(value string) (Category, error) {
	for _, candidate := range validCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", value)
}
