package domain

import "time"

// Product is a catalog item. Stock is the one piece of contended mutable
// state; it is only ever decremented through the order repository's
// conditional update.
type Product struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Description     string     `json:"description,omitempty"`
	PriceCents      int64      `json:"priceCents"`
	Currency        string     `json:"currency"`
	Stock           int        `json:"stock"`
	Images          []string   `json:"images,omitempty"`
	Colors          []string   `json:"colors,omitempty"`
	Sizes           []string   `json:"sizes,omitempty"`
	OnSale          bool       `json:"isSale"`
	DiscountPercent int        `json:"discount,omitempty"`
	SaleStart       *time.Time `json:"saleStart,omitempty"`
	SaleEnd         *time.Time `json:"saleEnd,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// SaleActive reports whether an active sale window covers now.
func (p Product) SaleActive(now time.Time) bool {
	return p.OnSale && p.SaleStart != nil && p.SaleEnd != nil &&
		!now.Before(*p.SaleStart) && !now.After(*p.SaleEnd)
}

// CurrentPriceCents returns the sale price when a sale window covers now,
// otherwise the list price.
func (p Product) CurrentPriceCents(now time.Time) int64 {
	if p.SaleActive(now) && p.DiscountPercent > 0 {
		return p.PriceCents - p.PriceCents*int64(p.DiscountPercent)/100
	}
	return p.PriceCents
}
