package catalog

import (
	"testing"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCriteria_Validate(t *testing.T) {
	price := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }

	tests := []struct {
		name    string
		c       Criteria
		wantErr bool
	}{
		{name: "default", c: DefaultCriteria()},
		{name: "equal bounds", c: Criteria{MinPrice: price("10"), MaxPrice: price("10.00"), Sort: SortPriceAsc}},
		{name: "only upper bound", c: Criteria{MaxPrice: price("5"), Sort: SortNameDesc}},
		{name: "inverted bounds", c: Criteria{MinPrice: price("20"), MaxPrice: price("10"), Sort: SortNameAsc}, wantErr: true},
		{name: "unknown sort", c: Criteria{Sort: "rating_desc"}, wantErr: true},
		{name: "missing sort", c: Criteria{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, sferrors.ErrValidationRejected)
				return
			}
			assert.NoError(t, err)
		})
	}
}
