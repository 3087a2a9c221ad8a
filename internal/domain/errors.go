package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation indicates malformed input or missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a lifecycle precondition was violated,
	// e.g. cancelling an order that has already shipped.
	ErrInvalidState = errors.New("invalid state for this operation")
	// ErrConflict indicates an idempotent duplicate or a concurrent
	// modification; callers should retry with fresh state.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock indicates a conditional stock decrement did not
	// apply because stock fell below the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidCoupon indicates the coupon is missing, inactive or expired.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrWebhookSignature indicates the webhook payload failed signature
	// verification and must not be processed.
	ErrWebhookSignature = errors.New("webhook signature verification failed")
)
