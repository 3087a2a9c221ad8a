package order

import (
	"context"

	"heavenly-backend/internal/domain"
)

// CheckoutLine is one order line to be created, with snapshots already
// resolved by the checkout service.
type CheckoutLine struct {
	ProductID      string
	Title          string
	Color          string
	Size           string
	Image          string
	Quantity       int
	UnitPriceCents int64
}

// CreateFromCheckoutInput carries everything needed to materialize an order
// from a completed payment session.
type CreateFromCheckoutInput struct {
	UserID            string
	Email             string
	CheckoutSessionID string
	PaymentIntentID   string
	ReceiptURL        string
	TotalCents        int64
	Currency          string
	CouponCode        string
	Shipping          domain.ShippingDetails
	Lines             []CheckoutLine
}

// LifecycleUpdate is a compare-and-swap mutation of an order's lifecycle
// fields. ExpectedVersion must match the stored version or the update is
// rejected with domain.ErrConflict.
type LifecycleUpdate struct {
	OrderID         string
	ExpectedVersion int
	ShippingStatus  domain.ShippingStatus
	Refund          domain.RefundDetails
}

type Repository interface {
	// CreateFromCheckout atomically decrements stock for every line, creates
	// the order with its line snapshots and clears the buyer's cart. If any
	// line's conditional decrement fails, nothing is applied and
	// domain.ErrInsufficientStock is returned. A duplicate checkout session
	// reference yields domain.ErrConflict.
	CreateFromCheckout(ctx context.Context, in CreateFromCheckoutInput) (*domain.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]domain.Order, int, error)
	UpdateLifecycle(ctx context.Context, up LifecycleUpdate) (*domain.Order, error)
}
