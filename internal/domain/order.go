package domain

import "time"

// ShippingStatus tracks where an order is in its fulfilment lifecycle.
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "Pending"
	ShippingShipped   ShippingStatus = "Shipped"
	ShippingDelivered ShippingStatus = "Delivered"
	ShippingCancelled ShippingStatus = "Cancelled"
	ShippingRefunded  ShippingStatus = "Refunded"
)

// ValidShippingStatus reports whether s is one of the known enum values.
func ValidShippingStatus(s ShippingStatus) bool {
	switch s {
	case ShippingPending, ShippingShipped, ShippingDelivered, ShippingCancelled, ShippingRefunded:
		return true
	}
	return false
}

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// RefundApproval is the admin decision state of a refund request.
type RefundApproval string

const (
	RefundApprovalNone     RefundApproval = ""
	RefundApprovalPending  RefundApproval = "Pending"
	RefundApprovalApproved RefundApproval = "Approved"
	RefundApprovalRejected RefundApproval = "Rejected"
)

// ShippingDetails is the delivery address snapshot taken at checkout.
// All three fields are required and immutable after order creation.
type ShippingDetails struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// RefundDetails records fee bookkeeping for cancellations and refunds.
// Amounts are in minor currency units.
type RefundDetails struct {
	Refunded        bool           `json:"refunded"`
	RefundAmount    int64          `json:"refundAmount"`
	AdminApproval   RefundApproval `json:"adminRefundApproval,omitempty"`
	CancellationFee int64          `json:"cancellationFee"`
	RefundFee       int64          `json:"refundFee"`
}

// OrderLine is a purchased item with product details snapshotted at
// order-creation time. Snapshots are never re-derived from the live product.
type OrderLine struct {
	ID             string `json:"id"`
	OrderID        string `json:"-"`
	ProductID      string `json:"productId"`
	Title          string `json:"title"`
	Color          string `json:"color,omitempty"`
	Size           string `json:"size,omitempty"`
	Image          string `json:"image,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// Order is one completed-or-in-progress purchase. CheckoutSessionID is the
// gateway's session reference and is unique: at most one order exists per
// completed payment session even under webhook redelivery.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Email             string          `json:"email"`
	Lines             []OrderLine     `json:"products"`
	TotalCents        int64           `json:"totalAmount"`
	Currency          string          `json:"currency"`
	Shipping          ShippingDetails `json:"shippingDetails"`
	CouponCode        string          `json:"couponCode"`
	CheckoutSessionID string          `json:"-"`
	PaymentIntentID   string          `json:"-"`
	ReceiptURL        string          `json:"receiptUrl,omitempty"`
	ShippingStatus    ShippingStatus  `json:"shippingStatus"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	Refund            RefundDetails   `json:"refundDetails"`
	Version           int             `json:"-"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// CouponNone is the sentinel stored when no coupon was applied.
const CouponNone = "none"
