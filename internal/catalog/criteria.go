package catalog

import (
	"fmt"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
)

// Criteria selects and orders products from a snapshot. Unset bounds and labels match everything.
type Criteria struct {
	Search       string              `json:"search" validate:"max=200"`
	MinPrice     decimal.NullDecimal `json:"min_price"`
	MaxPrice     decimal.NullDecimal `json:"max_price"`
	Category     *string             `json:"category"`
	Manufacturer *string             `json:"manufacturer"`
	Sort         SortKey             `json:"sort" validate:"required,oneof=name_asc name_desc price_asc price_desc"`
}

// DefaultCriteria matches the whole snapshot ordered by name.
func DefaultCriteria() Criteria {
	return Criteria{Sort: SortNameAsc}
}

var validate = validator.New()

// Validate returns ErrValidationRejected for an unknown sort key or an inverted price interval.
func (c Criteria) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", sferrors.ErrValidationRejected, err)
	}
	if c.MinPrice.Valid && c.MaxPrice.Valid && c.MinPrice.Decimal.GreaterThan(c.MaxPrice.Decimal) {
		return fmt.Errorf("%w: min price %s exceeds max price %s",
			sferrors.ErrValidationRejected, c.MinPrice.Decimal, c.MaxPrice.Decimal)
	}
	return nil
}
