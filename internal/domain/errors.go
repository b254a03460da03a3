package domain

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")

	ErrNotAuthenticated     = errors.New("user is not authenticated")
	ErrEmptyCart            = errors.New("your cart is empty")
	ErrMissingAddress       = errors.New("please add a shipping address")
	ErrMissingPaymentMethod = errors.New("please select a payment method")

	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProfileNotFound = errors.New("user not found")

	ErrInsufficientStock = errors.New("not enough stock")
	ErrCartChanged       = errors.New("cart changed during checkout, please review it and try again")
	ErrOrderNotPaid      = errors.New("order is not paid")
	ErrOrderAlreadyPaid  = errors.New("order is already paid")

	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrInvalidSignature          = errors.New("invalid webhook signature")
	ErrMissingOrderID            = errors.New("missing orderId in payment metadata")
	ErrProviderUnavailable       = errors.New("payment provider unavailable")
)
