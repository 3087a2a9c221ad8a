package coupon

import (
	"context"
	"time"

	"heavenly-backend/internal/domain"
)

type CreateCouponInput struct {
	Code               string
	DiscountPercentage int
	ExpiresAt          time.Time
	UserID             string
}

type Repository interface {
	// GetByCodeForUser returns the user's coupon with the given code
	// regardless of activity or expiry; redeemability is the caller's call.
	GetByCodeForUser(ctx context.Context, code, userID string) (*domain.Coupon, error)
	Create(ctx context.Context, in CreateCouponInput) (*domain.Coupon, error)
	// Deactivate flips is_active off. Redeemed coupons are kept, not deleted.
	Deactivate(ctx context.Context, code, userID string) error
}
