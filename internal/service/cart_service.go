package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/pricing"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"golang.org/x/sync/singleflight"
)

// saveAttempts bounds the optimistic retry loop when a concurrent writer bumps
// the cart version between our read and our write.
const saveAttempts = 3

type CartService struct {
	repo        repository.CartRepository
	catalog     repository.ProductCatalog
	cache       cache.CartCache
	views       cache.ViewInvalidator
	mergePolicy repository.MergePolicy
	sfg         singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	catalog repository.ProductCatalog,
	cartCache cache.CartCache,
	views cache.ViewInvalidator,
	mergePolicy repository.MergePolicy,
) *CartService {
	return &CartService{
		repo:        repo,
		catalog:     catalog,
		cache:       cartCache,
		views:       views,
		mergePolicy: mergePolicy,
	}
}

// GetCart returns the owner's cart, or nil with no error when the owner has
// none yet.
func (s *CartService) GetCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: missing cart owner", domain.ErrInvalidArgument)
	}

	v, err, _ := s.sfg.Do(owner.String(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, owner)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		cart, err = s.repo.GetCart(ctx, owner)
		if errors.Is(err, domain.ErrCartNotFound) {
			return (*domain.Cart)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		s.backfillImages(ctx, cart)

		if err := s.cache.Set(ctx, owner, cart); err != nil {
			log.Printf("cache set error: %v \n", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight hands the same pointer to every waiter
	return v.(*domain.Cart).Clone(), nil
}

// backfillImages fills lines saved without an image from the product's
// primary image and persists the repair when it can.
func (s *CartService) backfillImages(ctx context.Context, cart *domain.Cart) {
	repaired := false
	for i := range cart.Items {
		if cart.Items[i].Image != "" {
			continue
		}
		product, err := s.catalog.GetProduct(ctx, cart.Items[i].ProductID)
		if err != nil {
			log.Printf("backfill image for product %s: %v \n", cart.Items[i].ProductID, err)
			continue
		}
		if img := product.PrimaryImage(); img != "" {
			cart.Items[i].Image = img
			repaired = true
		}
	}
	if !repaired {
		return
	}
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		// the snapshot returned to the caller is still repaired
		log.Printf("persist backfilled images for cart %s: %v \n", cart.ID, err)
	}
}

func (s *CartService) AddItem(ctx context.Context, owner domain.OwnerKey, productID string, qty int) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: missing cart owner", domain.ErrInvalidArgument)
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	if qty < 1 || qty > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidArgument, domain.MaxLineQuantity)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, owner, true, func(cart *domain.Cart) error {
		idx := cart.Items.Find(productID)
		if idx >= 0 {
			want := cart.Items[idx].Qty + qty
			if want > domain.MaxLineQuantity {
				return fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidArgument, domain.MaxLineQuantity)
			}
			if product.Stock < want {
				return fmt.Errorf("%w: only %d of %s available", domain.ErrInsufficientStock, product.Stock, product.Name)
			}
			cart.Items[idx].Qty = want
			return nil
		}

		if product.Stock < qty {
			return fmt.Errorf("%w: only %d of %s available", domain.ErrInsufficientStock, product.Stock, product.Name)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Slug:      product.Slug,
			Image:     product.PrimaryImage(),
			UnitPrice: product.Price,
			Qty:       qty,
		})
		return nil
	})
	if err != nil {
		log.Printf("add item %s to cart of %s: %v \n", productID, owner, err)
		return nil, err
	}

	s.invalidateProductView(product.Slug)
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.OwnerKey, productID string) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: missing cart owner", domain.ErrInvalidArgument)
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}

	var slug string
	cart, err := s.mutate(ctx, owner, false, func(cart *domain.Cart) error {
		idx := cart.Items.Find(productID)
		if idx < 0 {
			return domain.ErrItemNotFound
		}
		slug = cart.Items[idx].Slug
		if cart.Items[idx].Qty == 1 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return nil
		}
		cart.Items[idx].Qty--
		return nil
	})
	if err != nil {
		log.Printf("remove item %s from cart of %s: %v \n", productID, owner, err)
		return nil, err
	}

	s.invalidateProductView(slug)
	return cart, nil
}

// MergeOnLogin hands a guest cart over to a user who just signed in.
func (s *CartService) MergeOnLogin(ctx context.Context, sessionToken, userID string) (repository.MergeOutcome, error) {
	if userID == "" {
		return repository.MergeNoGuestCart, domain.ErrNotAuthenticated
	}
	if sessionToken == "" {
		return repository.MergeNoGuestCart, nil
	}

	outcome, err := s.repo.MergeGuestCart(ctx, sessionToken, userID, s.mergePolicy)
	if err != nil {
		log.Printf("merge guest cart %s into user %s: %v \n", sessionToken, userID, err)
		return outcome, err
	}
	if outcome == repository.MergeGuestDiscarded || outcome == repository.MergeUserReplaced {
		log.Printf("cart merge for user %s: %s \n", userID, outcome)
	}

	s.invalidateCart(domain.GuestOwner(sessionToken))
	s.invalidateCart(domain.UserOwner(userID))
	return outcome, nil
}

// mutate loads the owner's cart, applies fn, reprices and writes the whole
// cart back, retrying when another writer got there first. fn must leave the
// cart untouched when it returns an error.
func (s *CartService) mutate(ctx context.Context, owner domain.OwnerKey, create bool, fn func(*domain.Cart) error) (*domain.Cart, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		cart, err := s.repo.GetCart(ctx, owner)
		switch {
		case errors.Is(err, domain.ErrCartNotFound) && create:
			cart = newCart(owner)
		case err != nil:
			return nil, err
		}

		if err := fn(cart); err != nil {
			return nil, err
		}
		pricing.Apply(cart)

		lastErr = s.repo.SaveCart(ctx, cart)
		if lastErr == nil {
			s.refreshCart(owner, cart)
			return cart, nil
		}
		if !errors.Is(lastErr, domain.ErrCartChanged) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func newCart(owner domain.OwnerKey) *domain.Cart {
	cart := &domain.Cart{Items: domain.CartItems{}}
	if owner.IsUser() {
		cart.UserID = owner.Value
	} else {
		cart.SessionToken = owner.Value
	}
	return cart
}

// refreshCart caches the cart just written. Its bumped version keeps a
// concurrent read-through from putting an older snapshot back.
func (s *CartService) refreshCart(owner domain.OwnerKey, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, owner, cart); err != nil {
		log.Printf("cache refresh error: %v \n", err)
		s.invalidateCart(owner)
	}
}

func (s *CartService) invalidateCart(owner domain.OwnerKey) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, owner); err != nil {
		log.Printf("cache invalidate error: %v \n", err)
	}
}

func (s *CartService) invalidateProductView(slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.views.InvalidateProductView(ctx, slug); err != nil {
		log.Printf("product view invalidate error: %v \n", err)
	}
}
