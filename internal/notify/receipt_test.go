package notify

import (
	"context"
	"testing"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupReceiptSink(t *testing.T, profiles *store.MemoryStore) (*ReceiptSink, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	sink := NewReceiptSink(db, profiles)
	require.NoError(t, sink.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return sink, cleanup
}

func paidOrder() *domain.Order {
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:     "order-1",
		UserID: "u1",
		ShippingAddress: domain.ShippingAddress{
			FullName: "Oscar Piastri", StreetAddress: "2 Pit Lane", City: "Melbourne", PostalCode: "3000", Country: "AU",
		},
		PaymentMethod: domain.PaymentMethodStripe,
		ItemsPrice:    decimal.RequireFromString("120"),
		ShippingPrice: decimal.Zero,
		TaxPrice:      decimal.RequireFromString("18"),
		TotalPrice:    decimal.RequireFromString("138"),
		IsPaid:        true,
		PaidAt:        &paidAt,
		PaymentResult: &domain.PaymentResult{ProviderID: "pi_1", Status: "succeeded", PayerEmail: "payer@example.com"},
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Team cap", Slug: "team-cap", UnitPrice: decimal.RequireFromString("60"), Qty: 2},
		},
	}
}

func TestSendReceipt_QueuesOncePerOrder(t *testing.T) {
	profiles := store.NewMemoryStore()
	profiles.SetProfile(domain.Profile{UserID: "u1", Name: "Oscar", Email: "oscar@example.com"})

	sink, cleanup := setupReceiptSink(t, profiles)
	defer cleanup()
	ctx := context.Background()

	order := paidOrder()
	require.NoError(t, sink.SendReceipt(ctx, order))

	order.TotalPrice = decimal.RequireFromString("999")
	require.NoError(t, sink.SendReceipt(ctx, order))

	receipt, err := sink.GetReceipt(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "Oscar", receipt.CustomerName)
	assert.Equal(t, "oscar@example.com", receipt.Email)
	assert.Equal(t, "138.00", receipt.TotalPrice)
	assert.Equal(t, "0.00", receipt.ShippingPrice)
	assert.Equal(t, "Melbourne", receipt.ShippingAddress.City)
	assert.Equal(t, ReceiptStatusPending, receipt.Status)
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, "60.00", receipt.Lines[0].UnitPrice)

	count, err := sink.collection.CountDocuments(ctx, map[string]string{"order_id": "order-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSendReceipt_FallsBackToPayerEmail(t *testing.T) {
	sink, cleanup := setupReceiptSink(t, store.NewMemoryStore())
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, sink.SendReceipt(ctx, paidOrder()))

	receipt, err := sink.GetReceipt(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "payer@example.com", receipt.Email)

	_, err = sink.GetReceipt(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
