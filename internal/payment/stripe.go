package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"heavenly-backend/internal/domain"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway implements Gateway on Stripe's hosted checkout.
type StripeGateway struct {
	webhookSecret string
}

func NewStripe(apiKey, webhookSecret string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateSession(ctx context.Context, in SessionInput) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		CustomerEmail:      stripe.String(in.CustomerEmail),
	}
	params.Context = ctx
	for _, item := range in.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if len(item.Images) > 0 {
			productData.Images = stripe.StringSlice(item.Images[:1])
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(item.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	if in.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(in.CouponID)},
		}
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create session: %w", err)
	}
	return sessionFromStripe(s), nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	params.AddExpand("payment_intent.latest_charge")

	s, err := session.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve session %s: %w", id, err)
	}
	return sessionFromStripe(s), nil
}

func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookSignature, err)
	}

	out := &WebhookEvent{Type: string(event.Type)}
	if out.Type == EventCheckoutCompleted {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("stripe: decode session payload: %w", err)
		}
		out.Session = *sessionFromStripe(&s)
	}
	return out, nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: refund intent %s: %w", paymentIntentID, err)
	}
	return &Refund{ID: r.ID, AmountCents: r.Amount}, nil
}

func (g *StripeGateway) CreateCoupon(ctx context.Context, percentOff int) (string, error) {
	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(float64(percentOff)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	c, err := coupon.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create coupon: %w", err)
	}
	return c.ID, nil
}

func sessionFromStripe(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		CustomerEmail: s.CustomerEmail,
		Currency:      string(s.Currency),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
		if s.PaymentIntent.LatestCharge != nil {
			out.ReceiptURL = s.PaymentIntent.LatestCharge.ReceiptURL
		}
	}
	return out
}
