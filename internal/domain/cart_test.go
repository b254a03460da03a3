package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItems_Validate(t *testing.T) {
	price := decimal.RequireFromString("9.99")
	tests := []struct {
		name    string
		items   CartItems
		wantErr bool
	}{
		{"empty", nil, false},
		{"ok", CartItems{{ProductID: "p1", UnitPrice: price, Qty: 1}, {ProductID: "p2", UnitPrice: price, Qty: 3}}, false},
		{"missing product id", CartItems{{UnitPrice: price, Qty: 1}}, true},
		{"duplicate line", CartItems{{ProductID: "p1", UnitPrice: price, Qty: 1}, {ProductID: "p1", UnitPrice: price, Qty: 2}}, true},
		{"zero qty", CartItems{{ProductID: "p1", UnitPrice: price, Qty: 0}}, true},
		{"negative price", CartItems{{ProductID: "p1", UnitPrice: decimal.NewFromInt(-1), Qty: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.items.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCart_CloneDoesNotShareItems(t *testing.T) {
	c := &Cart{ID: "c1", Items: CartItems{{ProductID: "p1", Qty: 1}}}
	cp := c.Clone()
	cp.Items[0].Qty = 5

	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Qty)
	assert.Equal(t, 1, c.Items.Find("p1")+1)
	assert.Equal(t, -1, c.Items.Find("nope"))
}

func TestOwnerKey(t *testing.T) {
	assert.True(t, UserOwner("u1").Valid())
	assert.True(t, GuestOwner("tok").Valid())
	assert.False(t, UserOwner("").Valid())
	assert.False(t, OwnerKey{}.Valid())
	assert.Equal(t, "user:u1", UserOwner("u1").String())
	assert.Equal(t, "guest:tok", GuestOwner("tok").String())
}
