package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"asha-medical/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartRepository defines the interface for per-user cart data access.
// Every operation is scoped to one user; carts of different users share
// no rows.
type CartRepository interface {
	FindItem(ctx context.Context, userID, productID uuid.UUID) (*domain.CartItem, error)
	UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	ListItems(ctx context.Context, userID uuid.UUID) ([]domain.CartItem, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// FindItem retrieves a single cart item, or ErrCartItemNotFound.
func (r *cartRepository) FindItem(ctx context.Context, userID, productID uuid.UUID) (*domain.CartItem, error) {
	query := `
		SELECT user_id, product_id, quantity, updated_at
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`

	item := &domain.CartItem{}
	err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

// UpsertItem inserts a cart item or, when the product is already in the
// cart, merges the quantity into the existing row. The merge happens in a
// single statement so concurrent adds from the same user serialize on the
// row.
func (r *cartRepository) UpsertItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, userID, productID, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return nil
}

// SetQuantity overwrites the stored quantity of an existing cart item.
func (r *cartRepository) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = $4
		WHERE user_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, productID, quantity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set cart item quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// RemoveItem deletes a cart item. Removal is idempotent: deleting a
// product that is not in the cart succeeds.
func (r *cartRepository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	_, err := r.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	return nil
}

// ListItems returns all cart items for a user.
func (r *cartRepository) ListItems(ctx context.Context, userID uuid.UUID) ([]domain.CartItem, error) {
	query := `
		SELECT user_id, product_id, quantity, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY updated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		err := rows.Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// Clear removes every cart item for a user.
func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
