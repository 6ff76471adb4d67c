package service

import (
	"context"
	"time"

	"asha-medical/internal/domain"
	"asha-medical/internal/repository"

	"github.com/google/uuid"
)

// CatalogService defines the business logic for browsing and maintaining
// the product catalog. Reads are open to everyone; writes are
// administrative.
type CatalogService interface {
	ListProducts(ctx context.Context, category, search string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	productRepo repository.ProductRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(productRepo repository.ProductRepository) CatalogService {
	return &catalogService{productRepo: productRepo}
}

// ListProducts returns catalog products, optionally filtered by category
// and a case-insensitive name search.
func (s *catalogService) ListProducts(ctx context.Context, category, search string) ([]*domain.Product, error) {
	return s.productRepo.List(ctx, category, search)
}

// GetProduct returns a single product by id.
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// Categories returns the distinct categories present in the catalog.
func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	return s.productRepo.Categories(ctx)
}

// CreateProduct adds a product to the catalog.
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	return s.productRepo.Create(ctx, product)
}

// UpdateProduct replaces a product's catalog fields.
func (s *catalogService) UpdateProduct(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now()
	return s.productRepo.Update(ctx, product)
}

// DeleteProduct removes a product from the catalog. Existing order line
// items keep their snapshots.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}
