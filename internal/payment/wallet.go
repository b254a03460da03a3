package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/metrics"
	"github.com/ishakdedicc/f1store-next.js/internal/paypal"
)

// InitiateWalletOrder opens a remote wallet order for the order total and
// remembers its id for the later capture check.
func (r *Reconciler) InitiateWalletOrder(ctx context.Context, orderID string) (string, error) {
	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.IsPaid {
		return "", domain.ErrOrderAlreadyPaid
	}

	pctx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	remoteID, err := r.wallet.CreateOrder(pctx, order.TotalPrice)
	if err != nil {
		log.Printf("create wallet order for %s: %v", orderID, err)
		return "", providerErr(err)
	}

	if err := r.orders.SetWalletOrderID(ctx, orderID, remoteID); err != nil {
		return "", err
	}
	return remoteID, nil
}

// ConfirmWalletOrder captures the approved remote order and marks the order
// paid when the capture matches what was initiated.
func (r *Reconciler) ConfirmWalletOrder(ctx context.Context, orderID, remoteOrderID string) error {
	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.IsPaid {
		r.metrics.MarkPaid.WithLabelValues(string(SourceWallet), metrics.OutcomeDuplicate).Inc()
		return nil
	}
	if order.WalletOrderID == "" || remoteOrderID != order.WalletOrderID {
		log.Printf("wallet confirmation for order %s: remote id %q does not match %q", orderID, remoteOrderID, order.WalletOrderID)
		return fmt.Errorf("%w: unknown wallet order", domain.ErrPaymentVerificationFailed)
	}

	pctx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	capture, err := r.wallet.CaptureOrder(pctx, remoteOrderID)
	if err != nil {
		log.Printf("capture wallet order %s for %s: %v", remoteOrderID, orderID, err)
		return providerErr(err)
	}
	if capture.ID != order.WalletOrderID || capture.Status != paypal.StatusCompleted {
		log.Printf("wallet capture for order %s rejected: id=%s status=%s", orderID, capture.ID, capture.Status)
		return fmt.Errorf("%w: capture %s has status %s", domain.ErrPaymentVerificationFailed, capture.ID, capture.Status)
	}

	_, err = r.markPaid(ctx, orderID, &domain.PaymentResult{
		ProviderID: capture.ID,
		Status:     capture.Status,
		PayerEmail: capture.PayerEmail,
		AmountPaid: capture.Amount,
	}, SourceWallet)
	return err
}
