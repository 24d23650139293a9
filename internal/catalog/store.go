package catalog

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Store is the immutable snapshot of one browsing session plus the option sets derived from it.
type Store struct {
	products      []Product
	categories    []string
	manufacturers []string
}

// NewStore copies products and derives the distinct category and manufacturer names.
func NewStore(tag language.Tag, products []Product) *Store {
	snapshot := slices.Clone(products)
	if snapshot == nil {
		snapshot = []Product{}
	}
	return &Store{
		products:      snapshot,
		categories:    distinct(tag, snapshot, func(p Product) *Label { return p.Category }),
		manufacturers: distinct(tag, snapshot, func(p Product) *Label { return p.Manufacturer }),
	}
}

// Products returns the snapshot. Callers must not modify it.
func (s *Store) Products() []Product {
	return s.products
}

func (s *Store) Categories() []string {
	return s.categories
}

func (s *Store) Manufacturers() []string {
	return s.manufacturers
}

// Len is the snapshot size.
func (s *Store) Len() int {
	return len(s.products)
}

func distinct(tag language.Tag, products []Product, field func(Product) *Label) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range products {
		v := labelValue(field(p))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	col := collate.New(tag)
	col.SortStrings(out)
	return out
}
