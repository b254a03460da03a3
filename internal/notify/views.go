package notify

import (
	"context"
	"errors"

	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

// ViewRefresher drops cached product pages of a paid order in-process. It is
// used when no Kafka brokers are configured.
type ViewRefresher struct {
	views cache.ViewInvalidator
}

func NewViewRefresher(views cache.ViewInvalidator) *ViewRefresher {
	return &ViewRefresher{views: views}
}

func (v *ViewRefresher) PurchaseCompleted(ctx context.Context, order *domain.Order) error {
	return InvalidatePurchasedViews(ctx, v.views, domain.NewPurchaseCompletedEvent(order))
}

// InvalidatePurchasedViews invalidates the page of every purchased product
// and reports all failures together.
func InvalidatePurchasedViews(ctx context.Context, views cache.ViewInvalidator, ev domain.PurchaseCompletedEvent) error {
	var errs []error
	seen := make(map[string]struct{}, len(ev.Items))
	for _, it := range ev.Items {
		if it.Slug == "" {
			continue
		}
		if _, dup := seen[it.Slug]; dup {
			continue
		}
		seen[it.Slug] = struct{}{}
		if err := views.InvalidateProductView(ctx, it.Slug); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
