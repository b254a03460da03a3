package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/ishakdedicc/f1store-next.js/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	store *store.MemoryStore
	repo  *countingRepo
	cache *mockCache
	views *mockViews
	sut   *CartService
}

func setupCartService(t *testing.T, policy repository.MergePolicy) *cartFixture {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	st.SetProduct(domain.Product{
		ID:     "p1",
		Name:   "Team cap",
		Slug:   "team-cap",
		Price:  decimal.RequireFromString("60.00"),
		Stock:  2,
		Images: []string{"/images/cap-1.jpg", "/images/cap-2.jpg"},
	})
	st.SetProduct(domain.Product{
		ID:    "p2",
		Name:  "Keyring",
		Slug:  "keyring",
		Price: decimal.RequireFromString("5.01"),
		Stock: 50,
	})

	f := &cartFixture{
		store: st,
		repo:  &countingRepo{CartRepository: st},
		cache: newMockCache(),
		views: &mockViews{},
	}
	f.sut = NewCartService(f.repo, st, f.cache, f.views, policy)
	return f
}

func TestAddItem_CreatesCartWithPricing(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	owner := domain.UserOwner("u1")

	cart, err := f.sut.AddItem(context.Background(), owner, "p1", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Team cap", cart.Items[0].Name)
	assert.Equal(t, "team-cap", cart.Items[0].Slug)
	assert.Equal(t, "/images/cap-1.jpg", cart.Items[0].Image)
	assert.Equal(t, 2, cart.Items[0].Qty)
	assert.Equal(t, "120", cart.ItemsPrice.String())
	assert.Equal(t, "0", cart.ShippingPrice.String())
	assert.Equal(t, "18", cart.TaxPrice.String())
	assert.Equal(t, "138", cart.TotalPrice.String())

	assert.Equal(t, []string{"team-cap"}, f.views.invalidated())
	cached := f.cache.peek(owner)
	require.NotNil(t, cached)
	assert.Equal(t, cart.Version, cached.Version)
	assert.Equal(t, 2, cached.Items[0].Qty)
	assert.Zero(t, f.cache.deleteCount(owner))
}

func TestGetCart_SlowReadDoesNotRecacheOlderCart(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.GuestOwner("sess")

	_, err := f.sut.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)
	require.NoError(t, f.cache.Delete(ctx, owner))

	// a write lands between the read-through's repo read and its cache fill
	f.repo.m.Lock()
	f.repo.afterGet = func() {
		_, err := f.sut.AddItem(ctx, owner, "p2", 1)
		require.NoError(t, err)
	}
	f.repo.m.Unlock()

	stale, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Items[0].Qty)

	cart, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Qty)
	assert.Equal(t, stale.Version+1, cart.Version)
	assert.Equal(t, "10.02", cart.ItemsPrice.String())
}

func TestAddItem_InsufficientStockLeavesCartUnchanged(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.UserOwner("u1")

	_, err := f.sut.AddItem(ctx, owner, "p1", 2)
	require.NoError(t, err)

	_, err = f.sut.AddItem(ctx, owner, "p1", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	cart, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Qty)
	assert.Equal(t, "138", cart.TotalPrice.String())
}

func TestAddItem_NewLineBeyondStock(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)

	_, err := f.sut.AddItem(context.Background(), domain.GuestOwner("sess"), "p1", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.store.GetCart(context.Background(), domain.GuestOwner("sess"))
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.GuestOwner("sess")

	_, err := f.sut.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)
	cart, err := f.sut.AddItem(ctx, owner, "p2", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Qty)
	assert.Equal(t, "15.03", cart.ItemsPrice.String())
	assert.Equal(t, "10", cart.ShippingPrice.String())
	assert.Equal(t, "2.25", cart.TaxPrice.String())
	assert.Equal(t, "27.28", cart.TotalPrice.String())
}

func TestAddItem_Validation(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()

	tests := []struct {
		name      string
		owner     domain.OwnerKey
		productID string
		qty       int
		wantErr   error
	}{
		{"missing owner", domain.OwnerKey{}, "p1", 1, domain.ErrInvalidArgument},
		{"empty product", domain.UserOwner("u1"), "", 1, domain.ErrInvalidArgument},
		{"zero quantity", domain.UserOwner("u1"), "p1", 0, domain.ErrInvalidArgument},
		{"quantity over limit", domain.UserOwner("u1"), "p2", 100, domain.ErrInvalidArgument},
		{"unknown product", domain.UserOwner("u1"), "nope", 1, domain.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sut.AddItem(ctx, tt.owner, tt.productID, tt.qty)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddItem_RetriesOnVersionConflict(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	f.repo.saveErrs = []error{domain.ErrCartChanged}

	cart, err := f.sut.AddItem(context.Background(), domain.UserOwner("u1"), "p2", 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestAddItem_RepoError(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	f.repo.saveErrs = []error{errors.New("database error")}

	_, err := f.sut.AddItem(context.Background(), domain.UserOwner("u1"), "p2", 1)
	require.ErrorContains(t, err, "database error")
	assert.Empty(t, f.views.invalidated())
}

func TestRemoveItem(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.UserOwner("u1")

	_, err := f.sut.AddItem(ctx, owner, "p2", 2)
	require.NoError(t, err)
	_, err = f.sut.AddItem(ctx, owner, "p1", 1)
	require.NoError(t, err)

	cart, err := f.sut.RemoveItem(ctx, owner, "p2")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 1, cart.Items[0].Qty)
	assert.Equal(t, "65.01", cart.ItemsPrice.String())

	cart, err = f.sut.RemoveItem(ctx, owner, "p2")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p1", cart.Items[0].ProductID)

	_, err = f.sut.RemoveItem(ctx, owner, "p2")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = f.sut.RemoveItem(ctx, domain.UserOwner("nobody"), "p1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestGetCart_NoCart(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)

	cart, err := f.sut.GetCart(context.Background(), domain.GuestOwner("fresh"))
	require.NoError(t, err)
	assert.Nil(t, cart)
	assert.False(t, f.cache.cached(domain.GuestOwner("fresh")))
}

func TestGetCart_ReadsThroughCache(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.UserOwner("u1")

	_, err := f.sut.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)
	require.NoError(t, f.cache.Delete(ctx, owner))
	readsAfterAdd := f.repo.getCount()

	first, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.True(t, f.cache.cached(owner))

	second, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// only the first read reached the store
	assert.Equal(t, readsAfterAdd+1, f.repo.getCount())
}

func TestGetCart_BackfillsMissingImage(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.GuestOwner("sess")

	require.NoError(t, f.store.SaveCart(ctx, &domain.Cart{
		SessionToken: "sess",
		Items: domain.CartItems{{
			ProductID: "p1",
			Name:      "Team cap",
			UnitPrice: decimal.RequireFromString("60.00"),
			Qty:       1,
		}},
	}))

	cart, err := f.sut.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "/images/cap-1.jpg", cart.Items[0].Image)

	stored, err := f.store.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "/images/cap-1.jpg", stored.Items[0].Image)
}

func TestGetCart_ConcurrentCallersGetCopies(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	owner := domain.UserOwner("u1")
	_, err := f.sut.AddItem(ctx, owner, "p2", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	carts := make([]*domain.Cart, 10)
	for i := range carts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.sut.GetCart(ctx, owner)
			if err == nil {
				carts[i] = c
			}
		}(i)
	}
	wg.Wait()

	for _, c := range carts {
		require.NotNil(t, c)
		require.Len(t, c.Items, 1)
	}
	carts[0].Items[0].Qty = 42
	for _, c := range carts[1:] {
		assert.Equal(t, 1, c.Items[0].Qty)
	}
}

func TestMergeOnLogin_PreservesGuestCart(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()
	guest := domain.GuestOwner("sess")

	_, err := f.sut.AddItem(ctx, guest, "p1", 1)
	require.NoError(t, err)
	before, err := f.sut.AddItem(ctx, guest, "p2", 3)
	require.NoError(t, err)

	outcome, err := f.sut.MergeOnLogin(ctx, "sess", "u1")
	require.NoError(t, err)
	assert.Equal(t, repository.MergeReassigned, outcome)

	after, err := f.sut.GetCart(ctx, domain.UserOwner("u1"))
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.TotalPrice.Equal(after.TotalPrice))

	guestCart, err := f.sut.GetCart(ctx, guest)
	require.NoError(t, err)
	assert.Nil(t, guestCart)
}

func TestMergeOnLogin_DiscardsGuestWhenUserHasCart(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)
	ctx := context.Background()

	_, err := f.sut.AddItem(ctx, domain.GuestOwner("sess"), "p1", 1)
	require.NoError(t, err)
	_, err = f.sut.AddItem(ctx, domain.UserOwner("u1"), "p2", 1)
	require.NoError(t, err)

	outcome, err := f.sut.MergeOnLogin(ctx, "sess", "u1")
	require.NoError(t, err)
	assert.Equal(t, repository.MergeGuestDiscarded, outcome)

	cart, err := f.sut.GetCart(ctx, domain.UserOwner("u1"))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p2", cart.Items[0].ProductID)
}

func TestMergeOnLogin_ReplacePolicy(t *testing.T) {
	f := setupCartService(t, repository.ReplaceUserCart)
	ctx := context.Background()

	_, err := f.sut.AddItem(ctx, domain.GuestOwner("sess"), "p1", 1)
	require.NoError(t, err)
	_, err = f.sut.AddItem(ctx, domain.UserOwner("u1"), "p2", 1)
	require.NoError(t, err)

	outcome, err := f.sut.MergeOnLogin(ctx, "sess", "u1")
	require.NoError(t, err)
	assert.Equal(t, repository.MergeUserReplaced, outcome)

	cart, err := f.sut.GetCart(ctx, domain.UserOwner("u1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", cart.Items[0].ProductID)
}

func TestMergeOnLogin_Arguments(t *testing.T) {
	f := setupCartService(t, repository.KeepUserCart)

	_, err := f.sut.MergeOnLogin(context.Background(), "sess", "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	outcome, err := f.sut.MergeOnLogin(context.Background(), "", "u1")
	require.NoError(t, err)
	assert.Equal(t, repository.MergeNoGuestCart, outcome)
}
