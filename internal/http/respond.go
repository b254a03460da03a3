package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts a checkout error into an HTTP status and code.
func handleServiceError(w http.ResponseWriter, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httpStatus, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrMissingAddress):
		httpStatus, code = http.StatusBadRequest, "missing_address"
	case errors.Is(err, domain.ErrMissingPaymentMethod):
		httpStatus, code = http.StatusBadRequest, "missing_payment_method"
	case errors.Is(err, domain.ErrInvalidSignature):
		httpStatus, code = http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrMissingOrderID):
		httpStatus, code = http.StatusBadRequest, "missing_order_id"
	case errors.Is(err, domain.ErrNotAuthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		httpStatus, code = http.StatusPaymentRequired, "payment_verification_failed"
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		httpStatus, code = http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrCartChanged):
		httpStatus, code = http.StatusConflict, "cart_changed"
	case errors.Is(err, domain.ErrOrderNotPaid):
		httpStatus, code = http.StatusConflict, "order_not_paid"
	case errors.Is(err, domain.ErrOrderAlreadyPaid):
		httpStatus, code = http.StatusConflict, "order_already_paid"
	case errors.Is(err, domain.ErrProviderUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "provider_unavailable"
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
