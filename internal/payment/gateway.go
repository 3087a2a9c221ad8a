// Package payment wraps the payment provider behind a narrow interface so
// services never touch provider types directly.
package payment

import "context"

// LineItem is one gateway line item. UnitAmount is in minor currency units.
type LineItem struct {
	Name       string
	Currency   string
	UnitAmount int64
	Quantity   int
	Images     []string
}

// SessionInput describes a hosted checkout session to create. Metadata is
// echoed back verbatim on the completion webhook; it is how the asynchronous
// handler reconstructs order content without a second round trip.
type SessionInput struct {
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	CouponID      string
	Metadata      map[string]string
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID              string
	PaymentIntentID string
	CustomerEmail   string
	Currency        string
	AmountTotal     int64
	ReceiptURL      string
	Metadata        map[string]string
}

// Refund is the result of a refund call.
type Refund struct {
	ID          string
	AmountCents int64
}

// EventCheckoutCompleted is the webhook event type that triggers order
// materialization.
const EventCheckoutCompleted = "checkout.session.completed"

// WebhookEvent is a verified webhook payload.
type WebhookEvent struct {
	Type    string
	Session Session
}

// Gateway is the payment provider surface the services depend on. Amounts
// are integer minor units throughout. VerifyWebhook fails closed: a payload
// that does not verify is never returned as an event.
type Gateway interface {
	CreateSession(ctx context.Context, in SessionInput) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*Refund, error)
	// CreateCoupon registers a single-use percentage discount with the
	// provider and returns its id.
	CreateCoupon(ctx context.Context, percentOff int) (string, error)
}
