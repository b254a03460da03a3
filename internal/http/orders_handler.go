package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

type OrderManager interface {
	CreateOrder(ctx context.Context, userID string) (string, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, page, limit int) (*domain.OrderPage, error)
	DeleteOrder(ctx context.Context, id string) error
}

type PaymentManager interface {
	InitiateWalletOrder(ctx context.Context, orderID string) (string, error)
	ConfirmWalletOrder(ctx context.Context, orderID, remoteOrderID string) error
	MarkPaid(ctx context.Context, orderID string) error
	MarkDelivered(ctx context.Context, orderID string) error
}

type OrdersHandler struct {
	orders   OrderManager
	payments PaymentManager
	timeout  time.Duration
}

func NewOrdersHandler(orders OrderManager, payments PaymentManager, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		payments: payments,
		timeout:  timeout,
	}
}

type OrderItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type OrderResponseDTO struct {
	ID              string                 `json:"id"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	ItemsPrice      string                 `json:"items_price"`
	ShippingPrice   string                 `json:"shipping_price"`
	TaxPrice        string                 `json:"tax_price"`
	TotalPrice      string                 `json:"total_price"`
	IsPaid          bool                   `json:"is_paid"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	IsDelivered     bool                   `json:"is_delivered"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	Items           []OrderItemDTO         `json:"items,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

type OrderListResponseDTO struct {
	Orders     []OrderResponseDTO `json:"orders"`
	TotalPages int                `json:"total_pages"`
}

type CreateOrderResponseDTO struct {
	OrderID string `json:"order_id"`
}

type WalletOrderResponseDTO struct {
	ID string `json:"id"`
}

type CaptureRequestDTO struct {
	OrderID string `json:"order_id"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := h.orders.CreateOrder(ctx, getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateOrderResponseDTO{OrderID: id})
}

// GET /api/v1/orders?page=&limit=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", domain.ErrNotAuthenticated.Error())
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", "page must be a number")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a number")
		return
	}

	result, err := h.orders.ListUserOrders(ctx, userID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(result.Orders))
	for _, o := range result.Orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, http.StatusOK, OrderListResponseDTO{Orders: dtos, TotalPages: result.TotalPages})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, ok := h.ownedOrder(ctx, w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// POST /api/v1/orders/{order_id}/paypal
func (h *OrdersHandler) InitiatePayPal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, ok := h.ownedOrder(ctx, w, r)
	if !ok {
		return
	}

	remoteID, err := h.payments.InitiateWalletOrder(ctx, order.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, WalletOrderResponseDTO{ID: remoteID})
}

// POST /api/v1/orders/{order_id}/paypal/capture
func (h *OrdersHandler) CapturePayPal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CaptureRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "order_id is required")
		return
	}

	order, ok := h.ownedOrder(ctx, w, r)
	if !ok {
		return
	}

	if err := h.payments.ConfirmWalletOrder(ctx, order.ID, req.OrderID); err != nil {
		handleServiceError(w, err)
		return
	}

	paid, err := h.orders.GetOrder(ctx, order.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(paid))
}

// PUT /api/v1/admin/orders/{order_id}/pay
func (h *OrdersHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.payments.MarkPaid(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/admin/orders/{order_id}/deliver
func (h *OrdersHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.payments.MarkDelivered(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/admin/orders/{order_id}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedOrder loads the order in the path and hides it from anyone but its
// owner or an admin. It writes the error response itself.
func (h *OrdersHandler) ownedOrder(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", domain.ErrNotAuthenticated.Error())
		return nil, false
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if order.UserID != userID && !isAdmin(r.Context()) {
		handleServiceError(w, domain.ErrOrderNotFound)
		return nil, false
	}
	return order, true
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Price:     money(it.UnitPrice),
			Quantity:  it.Qty,
		})
	}

	return OrderResponseDTO{
		ID:              o.ID,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod.String(),
		ItemsPrice:      money(o.ItemsPrice),
		ShippingPrice:   money(o.ShippingPrice),
		TaxPrice:        money(o.TaxPrice),
		TotalPrice:      money(o.TotalPrice),
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}
