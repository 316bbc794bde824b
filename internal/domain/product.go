package domain

import "time"

// MaxProductRating is the top of the product rating scale.
const MaxProductRating = 5

// Product is a standalone marketplace catalog entry.
type Product struct {
	ID        string
	Name      string
	Img       *string
	Price     Price
	Seller    string
	Rating    *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
