package checkout

import (
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Order is a placed order as listed on the Orders page.
type Order struct {
	ID       int64             `json:"id"`
	Price    decimal.Decimal   `json:"order_price"`
	Status   string            `json:"status"`
	Products []catalog.Product `json:"products"`
}

// Paid reports whether the order settled.
func (o Order) Paid() bool {
	return PaymentStatus{Status: o.Status}.Paid()
}
