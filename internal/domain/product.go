package domain

import "time"

// Availability values mirror the catalog's enum.
const (
	AvailabilityAvailable  = "Available"
	AvailabilityLimited    = "Limited"
	AvailabilityOutOfStock = "Out of Stock"
)

// Product is the catalog entry a line item is built from. The core only reads it.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	PriceCents   int64     `json:"priceCents"`
	Availability string    `json:"availability"`
	ImagePath    string    `json:"imagePath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Sellable reports whether the product may be added to a cart.
func (p Product) Sellable() bool {
	return p.Availability != AvailabilityOutOfStock
}

// CategoryCount is the number of products of a given type.
type CategoryCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}
