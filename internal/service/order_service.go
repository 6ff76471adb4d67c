package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"asha-medical/internal/domain"
	"asha-medical/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidPaymentMethod   = errors.New("payment method must be COD or UPI")
	ErrMissingUPIID           = errors.New("upi_id is required for UPI payment")
	ErrMissingDeliveryAddress = errors.New("delivery address is required")
	ErrMissingPhone           = errors.New("phone is required")
	ErrPrescriptionTooLarge   = errors.New("prescription attachment exceeds size limit")
	ErrPrescriptionBadFormat  = errors.New("prescription attachment must be a PDF, JPEG, or PNG data URL")
	ErrInvalidStatus          = errors.New("unknown order status")
	ErrInvalidTransition      = errors.New("order status transition not allowed")
)

// prescriptionMediaTypes are the attachment content types accepted at
// checkout. The original storefront only checked these in the browser;
// here the committer enforces them.
var prescriptionMediaTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// PlaceOrderInput is the checkout form submitted by the cart owner.
type PlaceOrderInput struct {
	PaymentMethod    string
	UPIID            string
	DeliveryAddress  string
	Phone            string
	PrescriptionData string
}

// OrderService defines the business logic for order placement and the
// fulfillment status lifecycle.
type OrderService interface {
	Place(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*domain.Order, error)
	GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orderRepo            repository.OrderRepository
	cartRepo             repository.CartRepository
	maxPrescriptionBytes int64
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, maxPrescriptionBytes int64) OrderService {
	return &orderService{
		orderRepo:            orderRepo,
		cartRepo:             cartRepo,
		maxPrescriptionBytes: maxPrescriptionBytes,
	}
}

// Place validates the checkout input and commits the user's cart into an
// immutable order. Validation happens before any state changes; the
// commit itself (stock decrements, order insert, cart clear) is a single
// transaction in the repository, so a failed placement leaves cart and
// stock exactly as they were.
func (s *orderService) Place(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*domain.Order, error) {
	items, err := s.cartRepo.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	method := domain.PaymentMethod(input.PaymentMethod)
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if method == domain.PaymentMethodUPI && strings.TrimSpace(input.UPIID) == "" {
		return nil, ErrMissingUPIID
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, ErrMissingDeliveryAddress
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, ErrMissingPhone
	}

	// The attachment stays optional even when a line item requires a
	// prescription; such orders are flagged for manual review instead of
	// being rejected. A supplied attachment must pass the size and type
	// boundary.
	if input.PrescriptionData != "" {
		if err := s.validatePrescription(input.PrescriptionData); err != nil {
			return nil, err
		}
	}

	upiID := ""
	if method == domain.PaymentMethodUPI {
		upiID = input.UPIID
	}

	order := &domain.Order{
		ID:               uuid.New(),
		UserID:           userID,
		PaymentMethod:    method,
		UPIID:            upiID,
		DeliveryAddress:  input.DeliveryAddress,
		Phone:            input.Phone,
		Status:           domain.OrderStatusPending,
		PrescriptionData: input.PrescriptionData,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.orderRepo.Place(ctx, order, items); err != nil {
		return nil, err
	}

	return order, nil
}

// validatePrescription checks a base64 data URL attachment against the
// allowed content types and the decoded size cap.
func (s *orderService) validatePrescription(data string) error {
	rest, ok := strings.CutPrefix(data, "data:")
	if !ok {
		return ErrPrescriptionBadFormat
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ErrPrescriptionBadFormat
	}

	mediaType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return ErrPrescriptionBadFormat
	}
	if !prescriptionMediaTypes[mediaType] {
		return ErrPrescriptionBadFormat
	}

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxPrescriptionBytes {
		return ErrPrescriptionTooLarge
	}

	return nil
}

// GetForUser returns one of the caller's orders. Orders belonging to
// other users are reported as not found.
func (s *orderService) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.FindByIDForUser(ctx, orderID, userID)
}

// ListForUser returns the caller's orders, most recent first.
func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

// UpdateStatus advances an order through the fulfillment machine:
// Pending -> Confirmed -> Delivered, forward only. Called by
// administrative actors, never by the placing user.
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, status); err != nil {
		return nil, err
	}

	order.Status = status
	return order, nil
}
