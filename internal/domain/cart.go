package domain

import "time"

// CartLine is an item in a user's cart. Color and size are the options the
// shopper picked; the snapshot of product details happens later, at order
// creation.
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
