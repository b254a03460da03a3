package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventTypePurchaseCompleted = "PurchaseCompleted"

type PurchasedItem struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Qty       int    `json:"qty"`
}

// PurchaseCompletedEvent is published once per paid order.
type PurchaseCompletedEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Items      []PurchasedItem `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	PaidAt     time.Time       `json:"paid_at"`
}

// NewPurchaseCompletedEvent builds the event for a paid order.
func NewPurchaseCompletedEvent(o *Order) PurchaseCompletedEvent {
	ev := PurchaseCompletedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Items:      make([]PurchasedItem, 0, len(o.Items)),
	}
	if o.PaidAt != nil {
		ev.PaidAt = *o.PaidAt
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, PurchasedItem{ProductID: it.ProductID, Slug: it.Slug, Qty: it.Qty})
	}
	return ev
}
