package pricing

import (
	"math/rand"
	"testing"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func item(price string, qty int) domain.CartItem {
	return domain.CartItem{ProductID: price, UnitPrice: decimal.RequireFromString(price), Qty: qty}
}

func TestCalc(t *testing.T) {
	tests := []struct {
		name                             string
		items                            []domain.CartItem
		itemsPrice, shipping, tax, total string
	}{
		{"free shipping above threshold", []domain.CartItem{item("60.00", 2)}, "120.00", "0.00", "18.00", "138.00"},
		{"exactly threshold pays shipping", []domain.CartItem{item("50.00", 2)}, "100.00", "10.00", "15.00", "125.00"},
		{"small cart", []domain.CartItem{item("19.99", 1), item("5.01", 3)}, "35.02", "10.00", "5.25", "50.27"},
		{"tax rounds half up", []domain.CartItem{item("0.10", 1)}, "0.10", "10.00", "0.02", "10.12"},
		{"empty", nil, "0.00", "10.00", "0.00", "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Calc(tt.items)
			assert.Equal(t, tt.itemsPrice, p.ItemsPrice.StringFixed(2))
			assert.Equal(t, tt.shipping, p.ShippingPrice.StringFixed(2))
			assert.Equal(t, tt.tax, p.TaxPrice.StringFixed(2))
			assert.Equal(t, tt.total, p.TotalPrice.StringFixed(2))
		})
	}
}

func TestCalc_TotalIsSumOfParts(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := r.Intn(6)
		items := make([]domain.CartItem, n)
		for j := range items {
			cents := r.Int63n(20000)
			items[j] = domain.CartItem{
				ProductID: "p",
				UnitPrice: decimal.New(cents, -2),
				Qty:       1 + r.Intn(5),
			}
		}

		p := Calc(items)
		assert.True(t, p.TotalPrice.Equal(p.ItemsPrice.Add(p.ShippingPrice).Add(p.TaxPrice)))
		assert.Equal(t, p.ItemsPrice.GreaterThan(FreeShippingThreshold), p.ShippingPrice.IsZero())
	}
}

func TestApply(t *testing.T) {
	cart := &domain.Cart{Items: domain.CartItems{item("60.00", 2)}}
	Apply(cart)
	assert.Equal(t, "138.00", cart.TotalPrice.StringFixed(2))
	assert.Equal(t, "0.00", cart.ShippingPrice.StringFixed(2))
}
