package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents an item in the store catalog. Stock is the shared
// mutable quantity that order placement decrements against.
type Product struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	Description          string    `json:"description" db:"description"`
	Price                float64   `json:"price" db:"price"`
	Category             string    `json:"category" db:"category"`
	ImageURL             string    `json:"image_url" db:"image_url"`
	Stock                int       `json:"stock" db:"stock"`
	RequiresPrescription bool      `json:"requires_prescription" db:"requires_prescription"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
