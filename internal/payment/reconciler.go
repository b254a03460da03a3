// Package payment converts external payment signals into the paid transition
// of an order, exactly once.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/metrics"
	"github.com/ishakdedicc/f1store-next.js/internal/paypal"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Source labels where a paid transition came from.
type Source string

const (
	SourceWallet Source = "paypal"
	SourceCard   Source = "stripe"
	SourceManual Source = "manual"
)

// WalletProvider is the remote wallet the customer approves payments in.
type WalletProvider interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error)
	CaptureOrder(ctx context.Context, remoteOrderID string) (*paypal.Capture, error)
}

// Notifier receives the paid order for the customer's receipt.
type Notifier interface {
	SendReceipt(ctx context.Context, order *domain.Order) error
}

// PurchaseListener is told about every completed purchase, e.g. to refresh
// product pages whose stock changed.
type PurchaseListener interface {
	PurchaseCompleted(ctx context.Context, order *domain.Order) error
}

type Config struct {
	WebhookSecret     string
	ProviderTimeout   time.Duration
	PostCommitTimeout time.Duration
}

type Reconciler struct {
	orders    repository.OrderRepository
	wallet    WalletProvider
	notifier  Notifier
	listeners []PurchaseListener
	metrics   *metrics.PaymentMetrics
	cfg       Config

	tasks sync.WaitGroup
}

func NewReconciler(
	orders repository.OrderRepository,
	wallet WalletProvider,
	notifier Notifier,
	m *metrics.PaymentMetrics,
	cfg Config,
	listeners ...PurchaseListener,
) *Reconciler {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.PostCommitTimeout <= 0 {
		cfg.PostCommitTimeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewPaymentMetrics(prometheus.NewRegistry())
	}
	return &Reconciler{
		orders:    orders,
		wallet:    wallet,
		notifier:  notifier,
		listeners: listeners,
		metrics:   m,
		cfg:       cfg,
	}
}

// MarkPaid records an out-of-band payment (e.g. cash on delivery) confirmed
// by an operator.
func (r *Reconciler) MarkPaid(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	_, err := r.markPaid(ctx, orderID, nil, SourceManual)
	return err
}

// markPaid performs the guarded paid transition and reports whether this call
// flipped the order. A repeated call for an already paid order succeeds
// without side effects.
func (r *Reconciler) markPaid(ctx context.Context, orderID string, result *domain.PaymentResult, source Source) (bool, error) {
	changed, err := r.orders.MarkPaid(ctx, orderID, result, time.Now().UTC())
	if err != nil {
		r.metrics.MarkPaid.WithLabelValues(string(source), metrics.OutcomeFailed).Inc()
		if errors.Is(err, domain.ErrInsufficientStock) {
			log.Printf("order %s paid via %s but stock is short, needs manual resolution: %v", orderID, source, err)
		} else {
			log.Printf("mark order %s paid via %s: %v", orderID, source, err)
		}
		return false, err
	}
	if !changed {
		r.metrics.MarkPaid.WithLabelValues(string(source), metrics.OutcomeDuplicate).Inc()
		return false, nil
	}

	r.metrics.MarkPaid.WithLabelValues(string(source), metrics.OutcomePaid).Inc()
	r.afterPaid(orderID)
	return true, nil
}

// afterPaid runs the receipt and purchase notifications in the background.
// Their failures are logged and counted, never returned.
func (r *Reconciler) afterPaid(orderID string) {
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PostCommitTimeout)
		defer cancel()

		order, err := r.orders.GetOrder(ctx, orderID)
		if err != nil {
			r.metrics.PostCommitFailures.WithLabelValues("load_order").Inc()
			log.Printf("post-commit: load paid order %s: %v", orderID, err)
			return
		}

		if r.notifier != nil {
			if err := r.notifier.SendReceipt(ctx, order); err != nil {
				r.metrics.PostCommitFailures.WithLabelValues("receipt").Inc()
				log.Printf("post-commit: receipt for order %s failed (ignored): %v", orderID, err)
			}
		}
		for _, l := range r.listeners {
			if err := l.PurchaseCompleted(ctx, order); err != nil {
				r.metrics.PostCommitFailures.WithLabelValues("purchase_signal").Inc()
				log.Printf("post-commit: purchase signal for order %s failed (ignored): %v", orderID, err)
			}
		}
	}()
}

// Wait blocks until every started post-commit task has finished.
func (r *Reconciler) Wait() {
	r.tasks.Wait()
}

// MarkDelivered stamps delivery of a paid order. Repeating it is a no-op.
func (r *Reconciler) MarkDelivered(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	if _, err := r.orders.MarkDelivered(ctx, orderID, time.Now().UTC()); err != nil {
		log.Printf("mark order %s delivered: %v", orderID, err)
		return err
	}
	return nil
}

// providerErr turns a deadline into a retryable provider failure.
func providerErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProviderUnavailable) {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return err
}
