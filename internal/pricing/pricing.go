// Package pricing computes cart and order totals.
package pricing

import (
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShipping          = decimal.NewFromInt(10)
	TaxRate               = decimal.RequireFromString("0.15")
)

type Prices struct {
	ItemsPrice    decimal.Decimal
	ShippingPrice decimal.Decimal
	TaxPrice      decimal.Decimal
	TotalPrice    decimal.Decimal
}

// round2 rounds half away from zero, which is half-up for the non-negative
// amounts handled here.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calc prices a list of cart lines. It is pure and never fails.
func Calc(items []domain.CartItem) Prices {
	itemsPrice := decimal.Zero
	for _, it := range items {
		line := round2(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
		itemsPrice = round2(itemsPrice.Add(line))
	}

	shipping := FlatShipping
	if itemsPrice.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := round2(itemsPrice.Mul(TaxRate))

	return Prices{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    round2(itemsPrice.Add(shipping).Add(tax)),
	}
}

// Apply recomputes the cart's derived totals from its items.
func Apply(cart *domain.Cart) {
	p := Calc(cart.Items)
	cart.ItemsPrice = p.ItemsPrice
	cart.ShippingPrice = p.ShippingPrice
	cart.TaxPrice = p.TaxPrice
	cart.TotalPrice = p.TotalPrice
}
