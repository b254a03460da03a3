package service

import (
	"context"
	"sync"

	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
)

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	deletes map[string]int
	err     error
}

func newMockCache() *mockCache {
	return &mockCache{
		carts:   make(map[string]*domain.Cart),
		deletes: make(map[string]int),
	}
}

func (m *mockCache) Get(_ context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[owner.String()]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCache) Set(_ context.Context, owner domain.OwnerKey, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if cur, ok := m.carts[owner.String()]; ok && cur.Version > cart.Version {
		return nil
	}
	m.carts[owner.String()] = cart.Clone()
	return nil
}

func (m *mockCache) Delete(_ context.Context, owner domain.OwnerKey) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, owner.String())
	m.deletes[owner.String()]++
	return nil
}

func (m *mockCache) cached(owner domain.OwnerKey) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[owner.String()]
	return ok
}

func (m *mockCache) peek(owner domain.OwnerKey) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[owner.String()].Clone()
}

func (m *mockCache) deleteCount(owner domain.OwnerKey) int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.deletes[owner.String()]
}

type mockViews struct {
	m     sync.Mutex
	slugs []string
}

func (m *mockViews) InvalidateProductView(_ context.Context, slug string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.slugs = append(m.slugs, slug)
	return nil
}

func (m *mockViews) invalidated() []string {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]string(nil), m.slugs...)
}

// countingRepo wraps a CartRepository to count reads and inject save errors.
type countingRepo struct {
	repository.CartRepository
	m        sync.Mutex
	gets     int
	saveErrs []error
	afterGet func() // runs once, right after the next read
}

func (r *countingRepo) GetCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	r.m.Lock()
	r.gets++
	hook := r.afterGet
	r.afterGet = nil
	r.m.Unlock()

	cart, err := r.CartRepository.GetCart(ctx, owner)
	if hook != nil {
		hook()
	}
	return cart, err
}

func (r *countingRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	r.m.Lock()
	if len(r.saveErrs) > 0 {
		err := r.saveErrs[0]
		r.saveErrs = r.saveErrs[1:]
		r.m.Unlock()
		return err
	}
	r.m.Unlock()
	return r.CartRepository.SaveCart(ctx, cart)
}

func (r *countingRepo) getCount() int {
	r.m.Lock()
	defer r.m.Unlock()
	return r.gets
}
