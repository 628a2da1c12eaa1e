package models

import "github.com/shopspring/decimal"

type SortOrder string

const (
	SortByName      SortOrder = "name"
	SortByPriceLow  SortOrder = "price-low"
	SortByPriceHigh SortOrder = "price-high"
	SortByRating    SortOrder = "rating"
)

// ParseSortOrder maps a query-string value to a SortOrder. Unknown
// values sort by name.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortByPriceLow, SortByPriceHigh, SortByRating:
		return SortOrder(s)
	default:
		return SortByName
	}
}

// ProductFilter is the set of catalog options a shopper can pick. Nil
// bounds and empty strings mean "not filtered".
type ProductFilter struct {
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
	Search    string
	SortBy    SortOrder
}

// Equal reports whether two filters would produce the same query.
func (f ProductFilter) Equal(o ProductFilter) bool {
	return f.Category == o.Category &&
		f.Search == o.Search &&
		ParseSortOrder(string(f.SortBy)) == ParseSortOrder(string(o.SortBy)) &&
		decimalPtrEqual(f.MinPrice, o.MinPrice) &&
		decimalPtrEqual(f.MaxPrice, o.MaxPrice) &&
		floatPtrEqual(f.MinRating, o.MinRating)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
