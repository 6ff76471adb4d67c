package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asha-medical/internal/domain"
	"asha-medical/internal/pricing"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusConflict    = errors.New("order status changed concurrently")
)

// OrderRepository defines the interface for order data access. Place is
// the commit protocol of checkout: it snapshots line items, decrements
// stock, persists the order, and clears the cart in one transaction.
type OrderRepository interface {
	Place(ctx context.Context, order *domain.Order, items []domain.CartItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Place atomically commits an order from the given cart items. For every
// item it performs a conditioned stock decrement that also snapshots the
// current product name and price; if any decrement finds too little
// stock, the whole transaction rolls back and neither stock, order, nor
// cart rows change. On success the order row and its line items are
// inserted, the user's cart is cleared, and order.Items and
// order.TotalAmount are filled in from the snapshots.
func (r *orderRepository) Place(ctx context.Context, order *domain.Order, items []domain.CartItem) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Decrement stock only when enough remains, returning the product
	// fields frozen into the line item. The condition and the decrement
	// are one statement, so concurrent placements cannot oversell.
	decrementQuery := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING name, price, requires_prescription
	`

	lines := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		line := domain.OrderLineItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}

		scanErr := tx.QueryRowContext(ctx, decrementQuery, item.ProductID, item.Quantity).Scan(
			&line.Name,
			&line.UnitPrice,
			&line.RequiresPrescription,
		)
		if scanErr != nil {
			if scanErr == sql.ErrNoRows {
				// Distinguish a missing product from one that ran out.
				var exists bool
				if existsErr := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
					item.ProductID,
				).Scan(&exists); existsErr != nil {
					err = fmt.Errorf("failed to check product existence: %w", existsErr)
					return err
				}
				if !exists {
					err = ErrProductNotFound
					return err
				}
				err = ErrInsufficientStock
				return err
			}
			err = fmt.Errorf("failed to decrement stock for product %s: %w", item.ProductID, scanErr)
			return err
		}

		if line.RequiresPrescription {
			order.RequiresPrescription = true
		}
		lines = append(lines, line)
	}

	priceLines := make([]pricing.Line, len(lines))
	for i, line := range lines {
		priceLines[i] = pricing.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity}
	}
	order.TotalAmount = pricing.Total(priceLines)
	order.Items = lines

	orderQuery := `
		INSERT INTO orders (id, user_id, total_amount, payment_method, upi_id, delivery_address, phone, status, requires_prescription, prescription_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.UserID,
		order.TotalAmount,
		order.PaymentMethod,
		order.UPIID,
		order.DeliveryAddress,
		order.Phone,
		order.Status,
		order.RequiresPrescription,
		order.PrescriptionData,
		order.CreatedAt,
	)
	if err != nil {
		err = fmt.Errorf("failed to insert order: %w", err)
		return err
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, unit_price, quantity, requires_prescription)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, line := range lines {
		_, err = tx.ExecContext(ctx, itemQuery,
			line.ID,
			line.OrderID,
			line.ProductID,
			line.Name,
			line.UnitPrice,
			line.Quantity,
			line.RequiresPrescription,
		)
		if err != nil {
			err = fmt.Errorf("failed to insert order item: %w", err)
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID)
	if err != nil {
		err = fmt.Errorf("failed to clear cart: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return err
	}

	return nil
}

const orderColumns = "id, user_id, total_amount, payment_method, upi_id, delivery_address, phone, status, requires_prescription, prescription_data, created_at"

func (r *orderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.PaymentMethod,
		&order.UPIID,
		&order.DeliveryAddress,
		&order.Phone,
		&order.Status,
		&order.RequiresPrescription,
		&order.PrescriptionData,
		&order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, requires_prescription
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderLineItem{}
	for rows.Next() {
		var item domain.OrderLineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.UnitPrice,
			&item.Quantity,
			&item.RequiresPrescription,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}

	order.Items = items
	return nil
}

// FindByID retrieves an order regardless of owner. Intended for
// administrative callers.
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// FindByIDForUser retrieves an order only when it belongs to userID.
// Orders of other users come back as ErrOrderNotFound so their existence
// does not leak.
func (r *orderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser returns a user's orders, most recent first.
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalAmount,
			&order.PaymentMethod,
			&order.UPIID,
			&order.DeliveryAddress,
			&order.Phone,
			&order.Status,
			&order.RequiresPrescription,
			&order.PrescriptionData,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for _, order := range orders {
		if err := r.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// UpdateStatus moves an order from one status to another. The update is
// conditioned on the current status so concurrent transitions cannot
// skip or repeat a step.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	query := `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}
