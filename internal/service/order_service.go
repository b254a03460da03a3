package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ishakdedicc/f1store-next.js/internal/cache"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
)

const DefaultPageSize = 12

type OrderService struct {
	carts    repository.CartRepository
	profiles repository.ProfileReader
	orders   repository.OrderRepository
	cache    cache.CartCache
}

func NewOrderService(
	carts repository.CartRepository,
	profiles repository.ProfileReader,
	orders repository.OrderRepository,
	cartCache cache.CartCache,
) *OrderService {
	return &OrderService{
		carts:    carts,
		profiles: profiles,
		orders:   orders,
		cache:    cartCache,
	}
}

// CreateOrder turns the user's cart into an unpaid order and empties the cart
// in the same transaction. Stock is not touched until the order is paid.
func (s *OrderService) CreateOrder(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}

	owner := domain.UserOwner(userID)
	cart, err := s.carts.GetCart(ctx, owner)
	if errors.Is(err, domain.ErrCartNotFound) {
		return "", domain.ErrEmptyCart
	}
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return "", domain.ErrEmptyCart
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.Address == nil {
		return "", domain.ErrMissingAddress
	}
	if !profile.PaymentMethod.Valid() {
		return "", domain.ErrMissingPaymentMethod
	}

	order := buildOrder(cart, profile)
	if err := s.orders.CreateOrderFromCart(ctx, order, cart.ID, cart.Version); err != nil {
		log.Printf("create order for user %s: %v \n", userID, err)
		return "", err
	}

	s.refreshCart(owner)
	return order.ID, nil
}

// refreshCart caches the emptied cart so a read that raced the order cannot
// leave the pre-order snapshot behind.
func (s *OrderService) refreshCart(owner domain.OwnerKey) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cart, err := s.carts.GetCart(ctx, owner)
	if err == nil {
		err = s.cache.Set(ctx, owner, cart)
	}
	if err == nil {
		return
	}
	log.Printf("cache refresh error: %v \n", err)
	if err := s.cache.Delete(ctx, owner); err != nil {
		log.Printf("cache invalidate error: %v \n", err)
	}
}

func buildOrder(cart *domain.Cart, profile *domain.Profile) *domain.Order {
	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          profile.UserID,
		ShippingAddress: *profile.Address,
		PaymentMethod:   profile.PaymentMethod,
		ItemsPrice:      cart.ItemsPrice,
		ShippingPrice:   cart.ShippingPrice,
		TaxPrice:        cart.TaxPrice,
		TotalPrice:      cart.TotalPrice,
		CreatedAt:       time.Now().UTC(),
	}
	order.Items = make([]domain.OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		order.Items = append(order.Items, domain.OrderItem{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			UnitPrice: it.UnitPrice,
			Qty:       it.Qty,
		})
	}
	return order
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	return s.orders.GetOrder(ctx, id)
}

// ListUserOrders returns one page (1-based) of the user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, page, limit int) (*domain.OrderPage, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	orders, total, err := s.orders.ListOrdersByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &domain.OrderPage{
		Orders:     orders,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// DeleteOrder removes an unpaid order. Paid orders are kept for accounting.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		log.Printf("delete order %s: %v \n", id, err)
		return err
	}
	return nil
}
