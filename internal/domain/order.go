package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPayPal         PaymentMethod = "PayPal"
	PaymentMethodStripe         PaymentMethod = "Stripe"
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// String representation (for logging)
func (m PaymentMethod) String() string {
	return string(m)
}

type ShippingAddress struct {
	FullName      string `json:"full_name" bson:"full_name"`
	StreetAddress string `json:"street_address" bson:"street_address"`
	City          string `json:"city" bson:"city"`
	PostalCode    string `json:"postal_code" bson:"postal_code"`
	Country       string `json:"country" bson:"country"`
}

// PaymentResult is the provider snapshot attached with the paid transition.
type PaymentResult struct {
	ProviderID string          `json:"id"`
	Status     string          `json:"status"`
	PayerEmail string          `json:"email_address"`
	AmountPaid decimal.Decimal `json:"price_paid"`
}

type OrderItem struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	TaxPrice        decimal.Decimal `json:"tax_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	PaymentResult   *PaymentResult  `json:"payment_result,omitempty"`
	WalletOrderID   string          `json:"wallet_order_id,omitempty"`
	Items           []OrderItem     `json:"order_items"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp
}

// OrderPage is one page of a user's order history.
type OrderPage struct {
	Orders     []*Order `json:"orders"`
	TotalPages int      `json:"total_pages"`
}
