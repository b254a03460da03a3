package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/segmentio/kafka-go"
)

const PurchasesTopic = "checkout-purchases"

// PurchasePublisher writes a PurchaseCompletedEvent to Kafka for each paid
// order, keyed by order id.
type PurchasePublisher struct {
	writer *kafka.Writer
}

func NewPurchasePublisher(brokers ...string) *PurchasePublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  PurchasesTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &PurchasePublisher{writer: w}
}

func (p *PurchasePublisher) PurchaseCompleted(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(domain.NewPurchaseCompletedEvent(order))
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(domain.EventTypePurchaseCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish purchase event for order %s: %w", order.ID, err)
	}
	return nil
}

func (p *PurchasePublisher) Close() {
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}
