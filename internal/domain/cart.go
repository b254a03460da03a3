package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const MaxLineQuantity = 99

// OwnerKind tells which identity a cart is keyed by.
type OwnerKind int

const (
	OwnerGuest OwnerKind = iota + 1
	OwnerUser
)

// OwnerKey identifies the owner of a cart: either a guest session token or an
// authenticated user id, never both.
type OwnerKey struct {
	Kind  OwnerKind
	Value string
}

func GuestOwner(sessionToken string) OwnerKey {
	return OwnerKey{Kind: OwnerGuest, Value: sessionToken}
}

func UserOwner(userID string) OwnerKey {
	return OwnerKey{Kind: OwnerUser, Value: userID}
}

func (o OwnerKey) IsUser() bool  { return o.Kind == OwnerUser }
func (o OwnerKey) IsGuest() bool { return o.Kind == OwnerGuest }

func (o OwnerKey) Valid() bool {
	return (o.Kind == OwnerGuest || o.Kind == OwnerUser) && o.Value != ""
}

// String representation (for logging and cache keys)
func (o OwnerKey) String() string {
	if o.IsUser() {
		return "user:" + o.Value
	}
	return "guest:" + o.Value
}

type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

// CartItems is the ordered line collection owned by a Cart.
type CartItems []CartItem

// Validate checks every line and the uniqueness of product ids.
func (items CartItems) Validate() error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: cart item without product id", ErrInvalidArgument)
		}
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("%w: duplicate cart line for product %s", ErrInvalidArgument, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
		if it.Qty < 1 {
			return fmt.Errorf("%w: quantity for product %s must be at least 1", ErrInvalidArgument, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative price for product %s", ErrInvalidArgument, it.ProductID)
		}
	}
	return nil
}

// Find returns the index of the line for productID or -1.
func (items CartItems) Find(productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with items.
func (items CartItems) Clone() CartItems {
	if items == nil {
		return nil
	}
	out := make(CartItems, len(items))
	copy(out, items)
	return out
}

type Cart struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	SessionToken  string          `json:"session_token,omitempty"`
	Items         CartItems       `json:"items"`
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = c.Items.Clone()
	return &cp
}

// OwnerKey reports the authoritative owner: the user when bound, else the
// guest session.
func (c *Cart) OwnerKey() OwnerKey {
	if c.UserID != "" {
		return UserOwner(c.UserID)
	}
	return GuestOwner(c.SessionToken)
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
