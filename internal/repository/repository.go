package repository

import (
	"context"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// MergePolicy decides what happens to a guest cart at login when the user
// already owns a cart.
type MergePolicy int

const (
	// KeepUserCart discards the guest cart.
	KeepUserCart MergePolicy = iota
	// ReplaceUserCart discards the user's cart and adopts the guest cart.
	ReplaceUserCart
)

type MergeOutcome int

const (
	MergeNoGuestCart MergeOutcome = iota
	MergeReassigned
	MergeGuestDiscarded
	MergeUserReplaced
)

// String representation (for logging)
func (m MergeOutcome) String() string {
	switch m {
	case MergeReassigned:
		return "reassigned"
	case MergeGuestDiscarded:
		return "guest_discarded"
	case MergeUserReplaced:
		return "user_replaced"
	default:
		return "no_guest_cart"
	}
}

// CartRepository persists carts. Items and totals are always written whole.
type CartRepository interface {
	// GetCart returns domain.ErrCartNotFound when the owner has no cart.
	GetCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)

	// SaveCart inserts the cart when cart.ID is empty, otherwise replaces its
	// items and totals. cart.Version is bumped on success.
	SaveCart(ctx context.Context, cart *domain.Cart) error

	// MergeGuestCart binds the guest cart found under sessionToken to userID.
	MergeGuestCart(ctx context.Context, sessionToken, userID string, policy MergePolicy) (MergeOutcome, error)
}

// ProductCatalog is the read-only catalog view. Stock read here is advisory.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

type OrderRepository interface {
	// CreateOrderFromCart atomically inserts the order and its items and
	// empties the cart. It fails with domain.ErrCartChanged when the cart
	// version no longer matches cartVersion.
	CreateOrderFromCart(ctx context.Context, order *domain.Order, cartID string, cartVersion int) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrdersByUser returns a page of orders newest first and the total count.
	ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error)

	// SetWalletOrderID stores the remote wallet order id on an unpaid order.
	SetWalletOrderID(ctx context.Context, orderID, walletOrderID string) error

	// MarkPaid decrements stock for every line and flips the paid flag in one
	// transaction. It reports false without changes when the order is
	// already paid.
	MarkPaid(ctx context.Context, orderID string, result *domain.PaymentResult, paidAt time.Time) (bool, error)

	// MarkDelivered flips the delivered flag of a paid order. It reports false
	// when the order was already delivered.
	MarkDelivered(ctx context.Context, orderID string, deliveredAt time.Time) (bool, error)

	// DeleteOrder removes an unpaid order.
	DeleteOrder(ctx context.Context, id string) error
}

// Store is everything the checkout core needs from the backing store.
type Store interface {
	CartRepository
	ProductCatalog
	ProfileReader
	OrderRepository
	Close() error
}
