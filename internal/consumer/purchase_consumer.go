package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/notify"
	"github.com/segmentio/kafka-go"
)

const groupID = "checkout-product-views"

// Consumer reads purchase events and refreshes the affected product pages.
type Consumer struct {
	views  cache.ViewInvalidator
	reader *kafka.Reader
}

func NewConsumer(views cache.ViewInvalidator, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    notify.PurchasesTopic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{views, reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	if t := eventType(m); t != "" && t != domain.EventTypePurchaseCompleted {
		return
	}

	var event domain.PurchaseCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}

	if err := notify.InvalidatePurchasedViews(ctx, c.views, event); err != nil {
		log.Printf("failed to invalidate product views for order %s: %v", event.OrderID, err)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
