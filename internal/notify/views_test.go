package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingViews struct {
	m     sync.Mutex
	slugs []string
	fail  map[string]bool
}

func (r *recordingViews) InvalidateProductView(_ context.Context, slug string) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.slugs = append(r.slugs, slug)
	if r.fail[slug] {
		return errors.New("redis down")
	}
	return nil
}

func TestViewRefresher_InvalidatesEachProductOnce(t *testing.T) {
	views := &recordingViews{}
	refresher := NewViewRefresher(views)

	order := &domain.Order{ID: "o1", Items: []domain.OrderItem{
		{ProductID: "p1", Slug: "team-cap", Qty: 1},
		{ProductID: "p2", Slug: "keyring", Qty: 2},
		{ProductID: "p3", Slug: "", Qty: 1},
	}}
	require.NoError(t, refresher.PurchaseCompleted(context.Background(), order))
	assert.Equal(t, []string{"team-cap", "keyring"}, views.slugs)
}

func TestInvalidatePurchasedViews_ReportsFailures(t *testing.T) {
	views := &recordingViews{fail: map[string]bool{"team-cap": true}}

	ev := domain.PurchaseCompletedEvent{OrderID: "o1", Items: []domain.PurchasedItem{
		{ProductID: "p1", Slug: "team-cap"},
		{ProductID: "p2", Slug: "keyring"},
	}}
	err := InvalidatePurchasedViews(context.Background(), views, ev)
	require.ErrorContains(t, err, "redis down")

	// the failure does not stop the remaining invalidations
	assert.Equal(t, []string{"team-cap", "keyring"}, views.slugs)
}
