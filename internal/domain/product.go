package domain

import "github.com/shopspring/decimal"

// Product is the catalog's read-only view of a product. Stock is the ledger
// counter decremented when an order is paid.
type Product struct {
	ID     string
	Name   string
	Slug   string
	Price  decimal.Decimal
	Stock  int
	Images []string
}

// PrimaryImage returns the first image or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Profile is what the identity collaborator knows about a user at checkout.
type Profile struct {
	UserID        string
	Name          string
	Email         string
	Address       *ShippingAddress
	PaymentMethod PaymentMethod
}
