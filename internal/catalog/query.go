package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Apply filters and sorts the snapshot using root-locale collation for names.
func Apply(catalog []Product, c Criteria) []Product {
	return ApplyLocale(language.Und, catalog, c)
}

// ApplyLocale filters catalog by c and returns a stably sorted copy.
// It never mutates catalog and never fails: no match is an empty slice.
func ApplyLocale(tag language.Tag, catalog []Product, c Criteria) []Product {
	search := strings.ToLower(c.Search)
	out := make([]Product, 0, len(catalog))
	for _, p := range catalog {
		if matches(p, c, search) {
			out = append(out, p)
		}
	}

	switch c.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortNameDesc:
		col := collate.New(tag)
		slices.SortStableFunc(out, func(a, b Product) int { return col.CompareString(b.Name, a.Name) })
	default:
		col := collate.New(tag)
		slices.SortStableFunc(out, func(a, b Product) int { return col.CompareString(a.Name, b.Name) })
	}
	return out
}

func matches(p Product, c Criteria, search string) bool {
	if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
		return false
	}
	if c.MinPrice.Valid && p.Price.LessThan(c.MinPrice.Decimal) {
		return false
	}
	if c.MaxPrice.Valid && p.Price.GreaterThan(c.MaxPrice.Decimal) {
		return false
	}
	if c.Category != nil && labelValue(p.Category) != *c.Category {
		return false
	}
	if c.Manufacturer != nil && labelValue(p.Manufacturer) != *c.Manufacturer {
		return false
	}
	return true
}
