package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalParam reads an optional decimal query parameter.
// An absent or blank parameter yields an invalid (unset) NullDecimal and no error.
func ParseDecimalParam(r *http.Request, key string) (decimal.NullDecimal, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s number: %s", key, value)
	}
	return decimal.NewNullDecimal(d), nil
}

// OptionalParam returns a trimmed query parameter or nil when it is absent or blank.
func OptionalParam(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}
