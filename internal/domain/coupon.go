package domain

import "time"

// Coupon is a per-user percentage discount grant. Redeemed or expired
// coupons are deactivated, never deleted.
type Coupon struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	ExpiresAt          time.Time `json:"expirationDate"`
	IsActive           bool      `json:"isActive"`
	UserID             string    `json:"userId"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Redeemable reports whether the coupon can be applied at the given time.
func (c Coupon) Redeemable(now time.Time) bool {
	return c.IsActive &&
		now.Before(c.ExpiresAt) &&
		c.DiscountPercentage >= 1 && c.DiscountPercentage <= 100
}
