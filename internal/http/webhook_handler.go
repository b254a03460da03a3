package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const stripeSignatureHeader = "Stripe-Signature"

type CardWebhookReceiver interface {
	HandleCardWebhook(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	receiver    CardWebhookReceiver
	timeout     time.Duration
	maxBodySize int64
}

func NewWebhookHandler(receiver CardWebhookReceiver, timeout time.Duration, maxBodySize int64) *WebhookHandler {
	return &WebhookHandler{
		receiver:    receiver,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// POST /api/v1/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// the signature covers the exact bytes, so the body is read raw
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	if err := h.receiver.HandleCardWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
