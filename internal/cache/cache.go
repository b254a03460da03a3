package cache

import (
	"context"
	"errors"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

// CartCache holds read-through snapshots of carts keyed by owner.
type CartCache interface {
	Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	// Set must not replace a cached cart that has a higher Version.
	Set(ctx context.Context, owner domain.OwnerKey, cart *domain.Cart) error
	Delete(ctx context.Context, owner domain.OwnerKey) error
}

// ViewInvalidator drops cached product-page renders so the next request
// shows fresh price and stock.
type ViewInvalidator interface {
	InvalidateProductView(ctx context.Context, slug string) error
}

var ErrCacheMiss = errors.New("cache miss")
