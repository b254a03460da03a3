package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/ishakdedicc/f1store-next.js/internal/pricing"
	"github.com/ishakdedicc/f1store-next.js/internal/repository"
	"github.com/shopspring/decimal"
)

type CartManager interface {
	GetCart(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.OwnerKey, productID string, qty int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.OwnerKey, productID string) (*domain.Cart, error)
	MergeOnLogin(ctx context.Context, sessionToken, userID string) (repository.MergeOutcome, error)
}

type CartHandler struct {
	carts   CartManager
	timeout time.Duration
}

func NewCartHandler(carts CartManager, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type CartResponseDTO struct {
	ID            string        `json:"id,omitempty"`
	Items         []CartItemDTO `json:"items"`
	ItemsPrice    string        `json:"items_price"`
	ShippingPrice string        `json:"shipping_price"`
	TaxPrice      string        `json:"tax_price"`
	TotalPrice    string        `json:"total_price"`
}

type MergeResponseDTO struct {
	Outcome string `json:"outcome"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertCart(cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.AddItem(ctx, ownerFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, convertCart(cart))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertCart(cart))
}

// POST /api/v1/cart/merge
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcome, err := h.carts.MergeOnLogin(ctx, getSessionToken(r.Context()), getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, MergeResponseDTO{Outcome: outcome.String()})
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// convertCart renders a missing cart as an empty one with shipping applied.
func convertCart(c *domain.Cart) CartResponseDTO {
	if c == nil {
		c = &domain.Cart{}
		pricing.Apply(c)
	}

	items := make([]CartItemDTO, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, CartItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Price:     money(it.UnitPrice),
			Quantity:  it.Qty,
		})
	}

	return CartResponseDTO{
		ID:            c.ID,
		Items:         items,
		ItemsPrice:    money(c.ItemsPrice),
		ShippingPrice: money(c.ShippingPrice),
		TaxPrice:      money(c.TaxPrice),
		TotalPrice:    money(c.TotalPrice),
	}
}
