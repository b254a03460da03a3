// Package store holds an in-memory implementation of the checkout store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/shopspring/decimal"
)

// MemoryStore implements repository.Store with in-memory maps. A single
// mutex plays the role of the database transaction: every composite write
// happens under one lock acquisition.
type MemoryStore struct {
	mu       sync.RWMutex
	carts    map[string]*domain.Cart    // cartID -> cart
	products map[string]*domain.Product // productID -> product
	profiles map[string]*domain.Profile // userID -> profile
	orders   map[string]*domain.Order   // orderID -> order
}

var _ repository.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:    make(map[string]*domain.Cart),
		products: make(map[string]*domain.Product),
		profiles: make(map[string]*domain.Profile),
		orders:   make(map[string]*domain.Order),
	}
}

// SetProduct creates or replaces a catalog entry (used for seeding).
func (s *MemoryStore) SetProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Images = append([]string(nil), p.Images...)
	s.products[p.ID] = &p
}

// SetProfile creates or replaces a user profile (used for seeding).
func (s *MemoryStore) SetProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Address != nil {
		addr := *p.Address
		p.Address = &addr
	}
	s.profiles[p.UserID] = &p
}

func (s *MemoryStore) findCartLocked(owner domain.OwnerKey) *domain.Cart {
	for _, c := range s.carts {
		if owner.IsUser() && c.UserID == owner.Value {
			return c
		}
		if owner.IsGuest() && c.UserID == "" && c.SessionToken == owner.Value {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) GetCart(_ context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findCartLocked(owner)
	if c == nil {
		return nil, domain.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) SaveCart(_ context.Context, cart *domain.Cart) error {
	if err := cart.Items.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if cart.ID == "" {
		owner := cart.OwnerKey()
		if !owner.Valid() {
			return fmt.Errorf("%w: cart has no owner", domain.ErrInvalidArgument)
		}
		if s.findCartLocked(owner) != nil {
			return domain.ErrCartChanged
		}
		cart.ID = uuid.New().String()
		cart.Version = 1
		cart.CreatedAt = now
		cart.UpdatedAt = now
		s.carts[cart.ID] = cart.Clone()
		return nil
	}

	stored, ok := s.carts[cart.ID]
	if !ok || stored.Version != cart.Version {
		return domain.ErrCartChanged
	}
	stored.Items = cart.Items.Clone()
	stored.ItemsPrice = cart.ItemsPrice
	stored.ShippingPrice = cart.ShippingPrice
	stored.TaxPrice = cart.TaxPrice
	stored.TotalPrice = cart.TotalPrice
	stored.Version++
	stored.UpdatedAt = now

	cart.Version = stored.Version
	cart.UpdatedAt = now
	return nil
}

func (s *MemoryStore) MergeGuestCart(_ context.Context, sessionToken, userID string, policy repository.MergePolicy) (repository.MergeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guest := s.findCartLocked(domain.GuestOwner(sessionToken))
	if guest == nil {
		return repository.MergeNoGuestCart, nil
	}

	outcome := repository.MergeReassigned
	if existing := s.findCartLocked(domain.UserOwner(userID)); existing != nil {
		if policy != repository.ReplaceUserCart {
			delete(s.carts, guest.ID)
			return repository.MergeGuestDiscarded, nil
		}
		delete(s.carts, existing.ID)
		outcome = repository.MergeUserReplaced
	}

	guest.UserID = userID
	guest.Version++
	guest.UpdatedAt = time.Now().UTC()
	return outcome, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	return &cp, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	if p.Address != nil {
		addr := *p.Address
		cp.Address = &addr
	}
	return &cp, nil
}

func (s *MemoryStore) CreateOrderFromCart(_ context.Context, order *domain.Order, cartID string, cartVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if cart.Version != cartVersion {
		return domain.ErrCartChanged
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("insert order: duplicate id %s", order.ID)
	}

	s.orders[order.ID] = order.Clone()

	cart.Items = domain.CartItems{}
	cart.ItemsPrice = decimal.Zero
	cart.ShippingPrice = decimal.Zero
	cart.TaxPrice = decimal.Zero
	cart.TotalPrice = decimal.Zero
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*domain.Order, 0, end-offset)
	for _, o := range all[offset:end] {
		cp := o.Clone()
		cp.Items = nil
		page = append(page, cp)
	}
	return page, total, nil
}

func (s *MemoryStore) SetWalletOrderID(_ context.Context, orderID, walletOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.IsPaid {
		return domain.ErrOrderAlreadyPaid
	}
	o.WalletOrderID = walletOrderID
	return nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, orderID string, result *domain.PaymentResult, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.IsPaid {
		return false, nil
	}

	// First pass: validate every line, so a failure leaves no partial decrement
	for _, item := range o.Items {
		p, exists := s.products[item.ProductID]
		if !exists {
			return false, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}
		if p.Stock < item.Qty {
			return false, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, item.ProductID)
		}
	}

	// Second pass: decrement
	for _, item := range o.Items {
		s.products[item.ProductID].Stock -= item.Qty
	}

	t := paidAt
	o.IsPaid = true
	o.PaidAt = &t
	if result != nil {
		pr := *result
		o.PaymentResult = &pr
	}
	return true, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, orderID string, deliveredAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if !o.IsPaid {
		return false, domain.ErrOrderNotPaid
	}
	if o.IsDelivered {
		return false, nil
	}
	t := deliveredAt
	o.IsDelivered = true
	o.DeliveredAt = &t
	return true, nil
}

func (s *MemoryStore) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.IsPaid {
		return domain.ErrOrderAlreadyPaid
	}
	delete(s.orders, id)
	return nil
}

// Close is a no-op; it satisfies repository.Store.
func (s *MemoryStore) Close() error {
	return nil
}
