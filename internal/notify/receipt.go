// Package notify delivers the side effects of a completed purchase: the
// customer's receipt and the purchase event for other services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	receiptsCollection = "receipts"

	ReceiptStatusPending = "pending"
)

type ReceiptLine struct {
	Name      string `bson:"name"`
	Slug      string `bson:"slug"`
	Image     string `bson:"image"`
	Qty       int    `bson:"qty"`
	UnitPrice string `bson:"unit_price"`
}

// Receipt is queued in Mongo for the mailer. Money is stored as fixed
// two-decimal strings.
type Receipt struct {
	OrderID         string                 `bson:"order_id"`
	UserID          string                 `bson:"user_id"`
	CustomerName    string                 `bson:"customer_name"`
	Email           string                 `bson:"email"`
	ShippingAddress domain.ShippingAddress `bson:"shipping_address"`
	PaymentMethod   string                 `bson:"payment_method"`
	Lines           []ReceiptLine          `bson:"lines"`
	ItemsPrice      string                 `bson:"items_price"`
	ShippingPrice   string                 `bson:"shipping_price"`
	TaxPrice        string                 `bson:"tax_price"`
	TotalPrice      string                 `bson:"total_price"`
	PaidAt          time.Time              `bson:"paid_at"`
	Status          string                 `bson:"status"`
	CreatedAt       time.Time              `bson:"created_at"`
}

type ReceiptSink struct {
	collection *mongo.Collection
	profiles   repository.ProfileReader
}

func NewReceiptSink(db *mongo.Database, profiles repository.ProfileReader) *ReceiptSink {
	return &ReceiptSink{
		collection: db.Collection(receiptsCollection),
		profiles:   profiles,
	}
}

func (s *ReceiptSink) CreateIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create receipt index: %w", err)
	}
	return nil
}

// SendReceipt queues one receipt per order. Sending again for the same order
// leaves the first receipt in place.
func (s *ReceiptSink) SendReceipt(ctx context.Context, order *domain.Order) error {
	receipt := buildReceipt(order)

	if s.profiles != nil {
		profile, err := s.profiles.GetProfile(ctx, order.UserID)
		switch {
		case err == nil:
			receipt.CustomerName = profile.Name
			receipt.Email = profile.Email
		case errors.Is(err, domain.ErrProfileNotFound):
			log.Printf("receipt for order %s: no profile for user %s", order.ID, order.UserID)
		default:
			return fmt.Errorf("load profile for receipt: %w", err)
		}
	}
	if receipt.Email == "" && order.PaymentResult != nil {
		receipt.Email = order.PaymentResult.PayerEmail
	}

	filter := bson.M{"order_id": order.ID}
	update := bson.M{"$setOnInsert": receipt}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to queue receipt: %w", err)
	}
	return nil
}

// GetReceipt returns the queued receipt for an order.
func (s *ReceiptSink) GetReceipt(ctx context.Context, orderID string) (*Receipt, error) {
	var r Receipt
	err := s.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return &r, nil
}

func buildReceipt(order *domain.Order) *Receipt {
	r := &Receipt{
		OrderID:         order.ID,
		UserID:          order.UserID,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod.String(),
		ItemsPrice:      order.ItemsPrice.StringFixed(2),
		ShippingPrice:   order.ShippingPrice.StringFixed(2),
		TaxPrice:        order.TaxPrice.StringFixed(2),
		TotalPrice:      order.TotalPrice.StringFixed(2),
		Status:          ReceiptStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if order.PaidAt != nil {
		r.PaidAt = *order.PaidAt
	}
	for _, it := range order.Items {
		r.Lines = append(r.Lines, ReceiptLine{
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return r
}
