package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one (product, quantity) entry in a user's cart. A stored
// quantity is always >= 1; setting it to zero removes the item.
type CartItem struct {
	UserID    uuid.UUID `json:"-" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartEntry is a cart item joined with its live product record. Subtotal
// is price x quantity at read time, never cached.
type CartEntry struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Cart is the view returned to the owning user: the current entries plus
// a total recomputed from live prices on every read.
type Cart struct {
	Items []CartEntry `json:"items"`
	Total float64     `json:"total"`
}
