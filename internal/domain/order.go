package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment state of a placed order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusDelivered OrderStatus = "Delivered"
)

// Valid reports whether s is a known status value.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine permits moving from s
// to next. Transitions are forward-only: Pending -> Confirmed -> Delivered.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed
	case OrderStatusConfirmed:
		return next == OrderStatusDelivered
	}
	return false
}

// PaymentMethod is the recorded payment intent. Neither method is settled
// by this service.
type PaymentMethod string

const (
	PaymentMethodCOD PaymentMethod = "COD"
	PaymentMethodUPI PaymentMethod = "UPI"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodUPI
}

// OrderLineItem is an immutable snapshot of a cart item taken at commit
// time. Name and UnitPrice are frozen copies so later catalog changes do
// not alter historical orders.
type OrderLineItem struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	OrderID              uuid.UUID `json:"order_id" db:"order_id"`
	ProductID            uuid.UUID `json:"product_id" db:"product_id"`
	Name                 string    `json:"name" db:"name"`
	UnitPrice            float64   `json:"price" db:"unit_price"`
	Quantity             int       `json:"quantity" db:"quantity"`
	RequiresPrescription bool      `json:"requires_prescription" db:"requires_prescription"`
}

// Order is the immutable record of a purchase. Only Status changes after
// creation, via the forward-only status machine.
type Order struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	UserID               uuid.UUID       `json:"user_id" db:"user_id"`
	Items                []OrderLineItem `json:"products" db:"-"`
	TotalAmount          float64         `json:"total_amount" db:"total_amount"`
	PaymentMethod        PaymentMethod   `json:"payment_method" db:"payment_method"`
	UPIID                string          `json:"upi_id,omitempty" db:"upi_id"`
	DeliveryAddress      string          `json:"delivery_address" db:"delivery_address"`
	Phone                string          `json:"phone" db:"phone"`
	Status               OrderStatus     `json:"status" db:"status"`
	RequiresPrescription bool            `json:"requires_prescription" db:"requires_prescription"`
	PrescriptionData     string          `json:"prescription_data,omitempty" db:"prescription_data"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}
