package service

import (
	"context"
	"errors"
	"fmt"

	"asha-medical/internal/domain"
	"asha-medical/internal/pricing"
	"asha-medical/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CartService defines the business logic for the per-user cart. All
// operations act on the cart of the given user only. Totals are
// recomputed from live catalog prices on every read, never cached.
type CartService interface {
	Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error)
	Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// Add puts quantity units of a product into the user's cart. If the
// product is already there the quantities merge. The merged quantity must
// not exceed the product's current stock. Stock itself is not touched;
// it is only committed against at order placement.
func (s *cartService) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	merged := quantity
	existing, err := s.cartRepo.FindItem(ctx, userID, productID)
	if err != nil && !errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, err
	}
	if existing != nil {
		merged += existing.Quantity
	}

	if merged > product.Stock {
		return nil, repository.ErrInsufficientStock
	}

	if err := s.cartRepo.UpsertItem(ctx, userID, productID, quantity); err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	return s.Get(ctx, userID)
}

// SetQuantity overwrites the stored quantity of a cart item. Zero removes
// the item; a quantity above the product's current stock fails and
// leaves the cart unchanged.
func (s *cartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	if quantity == 0 {
		if err := s.cartRepo.RemoveItem(ctx, userID, productID); err != nil {
			return nil, err
		}
		return s.Get(ctx, userID)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if quantity > product.Stock {
		return nil, repository.ErrInsufficientStock
	}

	if err := s.cartRepo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID)
}

// Clear removes every item from the user's cart. Clearing an already
// empty cart succeeds.
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	return s.Get(ctx, userID)
}

// Get returns the user's cart with a freshly computed total. Prices and
// stock are read live from the catalog; items whose product has since
// disappeared are skipped.
func (s *cartService) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	items, err := s.cartRepo.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	cart := &domain.Cart{Items: []domain.CartEntry{}}
	lines := []pricing.Line{}

	for _, item := range items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				continue
			}
			return nil, err
		}

		cart.Items = append(cart.Items, domain.CartEntry{
			Product:  *product,
			Quantity: item.Quantity,
			Subtotal: pricing.Subtotal(product.Price, item.Quantity),
		})
		lines = append(lines, pricing.Line{UnitPrice: product.Price, Quantity: item.Quantity})
	}

	cart.Total = pricing.Total(lines)
	return cart, nil
}
