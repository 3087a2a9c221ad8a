// Package checkout builds payment sessions from cart snapshots and turns
// completed payments into durable orders.
package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"heavenly-backend/internal/domain"
	"heavenly-backend/internal/payment"
	couponrepo "heavenly-backend/internal/repository/coupon"
	orderrepo "heavenly-backend/internal/repository/order"
	"heavenly-backend/internal/service/notify"
	"github.com/google/uuid"
)

type productRepo interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type cartRepo interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
}

type couponRepo interface {
	GetByCodeForUser(ctx context.Context, code, userID string) (*domain.Coupon, error)
	Create(ctx context.Context, in couponrepo.CreateCouponInput) (*domain.Coupon, error)
	Deactivate(ctx context.Context, code, userID string) error
}

type orderRepo interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	CreateFromCheckout(ctx context.Context, in orderrepo.CreateFromCheckoutInput) (*domain.Order, error)
}

type mailer interface {
	SendOrderConfirmation(ctx context.Context, to, orderID, receiptURL string) error
}

type dispatcher interface {
	Notify(ctx context.Context, rec domain.Recipient, orderID, statusLabel, message string, extra map[string]interface{}) (*notify.Payload, error)
}

// Config carries checkout policy knobs. Amounts are minor units.
type Config struct {
	SuccessURL            string
	CancelURL             string
	LoyaltyThresholdCents int64
	LoyaltyPercent        int
	LoyaltyTTL            time.Duration
}

func (c *Config) applyDefaults() {
	if c.LoyaltyThresholdCents == 0 {
		c.LoyaltyThresholdCents = 20000
	}
	if c.LoyaltyPercent == 0 {
		c.LoyaltyPercent = 10
	}
	if c.LoyaltyTTL == 0 {
		c.LoyaltyTTL = 30 * 24 * time.Hour
	}
}

// Service is the checkout orchestrator.
type Service struct {
	gateway  payment.Gateway
	products productRepo
	carts    cartRepo
	coupons  couponRepo
	orders   orderRepo
	mail     mailer
	notifier dispatcher
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

func New(gateway payment.Gateway, products productRepo, carts cartRepo, coupons couponRepo, orders orderRepo, mail mailer, notifier dispatcher, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg.applyDefaults()
	return &Service{
		gateway:  gateway,
		products: products,
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
		mail:     mail,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ItemInput is one cart line as submitted by the client.
type ItemInput struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// CreateSessionInput is the checkout request body.
type CreateSessionInput struct {
	Items      []ItemInput            `json:"products"`
	Shipping   domain.ShippingDetails `json:"shippingDetails"`
	CouponCode string                 `json:"coupon"`
}

// Metadata keys round-tripped through the gateway.
const (
	metaUserID          = "userId"
	metaShippingDetails = "shippingDetails"
	metaCouponCode      = "couponCode"
	metaIdempotencyKey  = "idempotencyKey"
)

// CreateSession validates the request, prices each line (sale price when a
// sale window covers now), registers an optional coupon discount with the
// gateway and returns the hosted session the client redirects to.
func (s *Service) CreateSession(ctx context.Context, buyer *domain.Customer, in CreateSessionInput) (*payment.Session, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: products required", domain.ErrValidation)
	}
	var missing []string
	if strings.TrimSpace(in.Shipping.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Shipping.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(in.Shipping.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing shipping fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
		}
	}

	ids := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		ids = append(ids, item.ProductID)
	}
	productsByID, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var lineItems []payment.LineItem
	var totalCents int64
	for _, item := range in.Items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, item.ProductID)
		}
		unit := product.CurrentPriceCents(now)
		totalCents += unit * int64(item.Quantity)
		lineItems = append(lineItems, payment.LineItem{
			Name:       product.Title,
			Currency:   strings.ToLower(product.Currency),
			UnitAmount: unit,
			Quantity:   item.Quantity,
			Images:     product.Images,
		})
	}

	couponCode := strings.TrimSpace(in.CouponCode)
	gatewayCouponID := ""
	if couponCode != "" {
		c, err := s.coupons.GetByCodeForUser(ctx, couponCode, buyer.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrInvalidCoupon
			}
			return nil, err
		}
		if !c.Redeemable(now) {
			return nil, domain.ErrInvalidCoupon
		}
		gatewayCouponID, err = s.gateway.CreateCoupon(ctx, c.DiscountPercentage)
		if err != nil {
			return nil, err
		}
	} else {
		couponCode = domain.CouponNone
	}

	shippingJSON, err := json.Marshal(in.Shipping)
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateSession(ctx, payment.SessionInput{
		LineItems:     lineItems,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		CustomerEmail: buyer.Email,
		CouponID:      gatewayCouponID,
		Metadata: map[string]string{
			metaUserID:          buyer.ID,
			metaShippingDetails: string(shippingJSON),
			metaCouponCode:      couponCode,
			metaIdempotencyKey:  uuid.NewString(),
		},
	})
	if err != nil {
		return nil, err
	}

	// Loyalty reward for high-value carts, minted regardless of whether
	// this particular checkout ever completes.
	if totalCents > s.cfg.LoyaltyThresholdCents {
		if err := s.mintLoyaltyCoupon(ctx, buyer.ID); err != nil {
			s.logger.Printf("checkout: loyalty coupon for user %s: %v", buyer.ID, err)
		}
	}

	s.logger.Printf("checkout: session %s created for user %s total=%d coupon=%s", session.ID, buyer.ID, totalCents, couponCode)
	return session, nil
}

func (s *Service) mintLoyaltyCoupon(ctx context.Context, userID string) error {
	raw := make([]byte, 3)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	code := "GIFT" + strings.ToUpper(hex.EncodeToString(raw))
	_, err := s.coupons.Create(ctx, couponrepo.CreateCouponInput{
		Code:               code,
		DiscountPercentage: s.cfg.LoyaltyPercent,
		ExpiresAt:          s.now().Add(s.cfg.LoyaltyTTL),
		UserID:             userID,
	})
	return err
}

// HandleWebhook verifies the raw payload and dispatches completed checkout
// sessions. Any returned error must surface as a non-2xx response so the
// gateway redelivers.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != payment.EventCheckoutCompleted {
		s.logger.Printf("checkout: ignoring webhook event %s", event.Type)
		return nil
	}
	return s.HandleCheckoutCompleted(ctx, event.Session)
}

// HandleCheckoutCompleted materializes an order from a completed payment
// session. It is safe to invoke more than once per session: a lookup by
// session reference short-circuits duplicates, and the unique constraint on
// that reference backstops concurrent deliveries that race past the lookup.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, sess payment.Session) error {
	userID := sess.Metadata[metaUserID]
	shippingRaw := sess.Metadata[metaShippingDetails]
	if userID == "" || shippingRaw == "" {
		return fmt.Errorf("%w: incomplete session metadata", domain.ErrValidation)
	}
	var shipping domain.ShippingDetails
	if err := json.Unmarshal([]byte(shippingRaw), &shipping); err != nil {
		return fmt.Errorf("%w: malformed shipping metadata: %v", domain.ErrValidation, err)
	}
	couponCode := sess.Metadata[metaCouponCode]
	if couponCode == "" {
		couponCode = domain.CouponNone
	}

	if existing, err := s.orders.GetBySessionID(ctx, sess.ID); err == nil && existing != nil {
		s.logger.Printf("checkout: duplicate webhook for session %s, order %s already exists", sess.ID, existing.ID)
		return nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	cartLines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(cartLines) == 0 {
		return fmt.Errorf("%w: cart is empty for user %s", domain.ErrConflict, userID)
	}

	// The expanded session carries the payment intent, receipt and the
	// authoritative charged amount. Totals are trusted from the gateway,
	// never recomputed from current prices, so a price change between
	// session creation and payment completion cannot skew the order.
	full, err := s.gateway.RetrieveSession(ctx, sess.ID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(cartLines))
	for _, line := range cartLines {
		ids = append(ids, line.ProductID)
	}
	productsByID, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	now := s.now()
	lines := make([]orderrepo.CheckoutLine, 0, len(cartLines))
	for _, cl := range cartLines {
		product, ok := productsByID[cl.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, cl.ProductID)
		}
		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		lines = append(lines, orderrepo.CheckoutLine{
			ProductID:      cl.ProductID,
			Title:          product.Title,
			Color:          cl.Color,
			Size:           cl.Size,
			Image:          image,
			Quantity:       cl.Quantity,
			UnitPriceCents: product.CurrentPriceCents(now),
		})
	}

	currency := strings.ToUpper(full.Currency)
	if currency == "" {
		currency = "USD"
	}
	email := full.CustomerEmail
	if email == "" {
		email = sess.CustomerEmail
	}

	ord, err := s.orders.CreateFromCheckout(ctx, orderrepo.CreateFromCheckoutInput{
		UserID:            userID,
		Email:             email,
		CheckoutSessionID: sess.ID,
		PaymentIntentID:   full.PaymentIntentID,
		ReceiptURL:        full.ReceiptURL,
		TotalCents:        full.AmountTotal,
		Currency:          currency,
		CouponCode:        couponCode,
		Shipping:          shipping,
		Lines:             lines,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the insert race to a concurrent delivery; same outcome
			// as the lookup short-circuit above.
			s.logger.Printf("checkout: session %s already materialized concurrently", sess.ID)
			return nil
		}
		return err
	}

	s.logger.Printf("checkout: order %s created for session %s total=%d", ord.ID, sess.ID, ord.TotalCents)
	s.runPostCommit(ctx, ord, couponCode)
	return nil
}

// runPostCommit executes the best-effort side effects of a committed order.
// Failures here are logged and never unwind the financial state.
func (s *Service) runPostCommit(ctx context.Context, ord *domain.Order, couponCode string) {
	if couponCode != domain.CouponNone {
		if err := s.coupons.Deactivate(ctx, couponCode, ord.UserID); err != nil {
			s.logger.Printf("checkout: deactivate coupon %s: %v", couponCode, err)
		}
	}
	if err := s.mail.SendOrderConfirmation(ctx, ord.Email, ord.ID, ord.ReceiptURL); err != nil {
		s.logger.Printf("checkout: confirmation email for order %s: %v", ord.ID, err)
	}
	extra := map[string]interface{}{"totalAmount": ord.TotalCents, "currency": ord.Currency}
	if _, err := s.notifier.Notify(ctx, domain.AdminRecipient(), ord.ID, "New Order",
		fmt.Sprintf("New order placed by user %s.", ord.UserID), extra); err != nil {
		s.logger.Printf("checkout: admin notification for order %s: %v", ord.ID, err)
	}
	if _, err := s.notifier.Notify(ctx, domain.UserRecipient(ord.UserID), ord.ID, "Order Placed",
		"Your order has been successfully placed and is being processed.", extra); err != nil {
		s.logger.Printf("checkout: buyer notification for order %s: %v", ord.ID, err)
	}
}
