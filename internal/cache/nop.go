package cache

import (
	"context"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

// Nop is used when no Redis address is configured. Every read misses.
type Nop struct{}

var (
	_ CartCache       = Nop{}
	_ ViewInvalidator = Nop{}
)

func (Nop) Get(context.Context, domain.OwnerKey) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, domain.OwnerKey, *domain.Cart) error   { return nil }
func (Nop) Delete(context.Context, domain.OwnerKey) error              { return nil }
func (Nop) InvalidateProductView(context.Context, string) error        { return nil }
