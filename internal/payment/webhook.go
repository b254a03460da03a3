package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"

	orderIDMetadataKey = "orderId"
)

// HandleCardWebhook verifies a card processor event and, for a succeeded
// payment intent, marks the referenced order paid. Other event types are
// acknowledged and ignored. Redelivery of the same event is harmless. Without
// a signing secret every event is rejected.
func (r *Reconciler) HandleCardWebhook(ctx context.Context, payload []byte, signature string) error {
	if r.cfg.WebhookSecret == "" {
		r.metrics.Webhooks.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		log.Printf("stripe webhook rejected: no signing secret configured")
		return fmt.Errorf("%w: no signing secret configured", domain.ErrInvalidSignature)
	}
	if signature == "" {
		r.metrics.Webhooks.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		return fmt.Errorf("%w: missing signature header", domain.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, r.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		r.metrics.Webhooks.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		log.Printf("stripe webhook rejected: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	if eventType != EventPaymentIntentSucceeded {
		r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomeIgnored).Inc()
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomeRejected).Inc()
		return fmt.Errorf("%w: malformed payment intent: %v", domain.ErrInvalidArgument, err)
	}

	orderID := intent.Metadata[orderIDMetadataKey]
	if orderID == "" {
		r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomeRejected).Inc()
		log.Printf("stripe webhook %s: payment intent %s has no orderId", event.ID, intent.ID)
		return domain.ErrMissingOrderID
	}

	changed, err := r.markPaid(ctx, orderID, &domain.PaymentResult{
		ProviderID: intent.ID,
		Status:     string(intent.Status),
		PayerEmail: intent.ReceiptEmail,
		// amounts arrive in the smallest currency unit
		AmountPaid: decimal.New(intent.AmountReceived, -2),
	}, SourceCard)
	if err != nil {
		r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomeFailed).Inc()
		return err
	}

	if !changed {
		r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomeDuplicate).Inc()
		return nil
	}
	r.metrics.Webhooks.WithLabelValues(eventType, metrics.OutcomePaid).Inc()
	return nil
}
