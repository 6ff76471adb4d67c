package transport

import (
	"errors"
	"net/http"

	"asha-medical/internal/domain"
	"asha-medical/internal/middleware"
	"asha-medical/internal/repository"
	"asha-medical/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProductRequest represents the admin payload for adding a product
type CreateProductRequest struct {
	Name                 string  `json:"name" validate:"required,min=2,max=200"`
	Description          string  `json:"description" validate:"max=2000"`
	Price                float64 `json:"price" validate:"required,gt=0"`
	Category             string  `json:"category" validate:"required,min=2,max=100"`
	ImageURL             string  `json:"image_url" validate:"omitempty,url"`
	Stock                int     `json:"stock" validate:"min=0"`
	RequiresPrescription bool    `json:"requires_prescription"`
}

// UpdateProductRequest represents the admin payload for replacing a product
type UpdateProductRequest struct {
	Name                 string  `json:"name" validate:"required,min=2,max=200"`
	Description          string  `json:"description" validate:"max=2000"`
	Price                float64 `json:"price" validate:"required,gt=0"`
	Category             string  `json:"category" validate:"required,min=2,max=100"`
	ImageURL             string  `json:"image_url" validate:"omitempty,url"`
	Stock                int     `json:"stock" validate:"min=0"`
	RequiresPrescription bool    `json:"requires_prescription"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes. Reads are public, writes
// require an admin token.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
	r.Get("/api/categories", h.ListCategories)
}

// ListProducts returns catalog products, filtered by the optional
// category and search query parameters.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	search := r.URL.Query().Get("search")

	products, err := h.catalogService.ListProducts(r.Context(), category, search)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns a single product by id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListCategories returns the distinct product categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// CreateProduct adds a product to the catalog. Admin only.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product := &domain.Product{
		Name:                 req.Name,
		Description:          req.Description,
		Price:                req.Price,
		Category:             req.Category,
		ImageURL:             req.ImageURL,
		Stock:                req.Stock,
		RequiresPrescription: req.RequiresPrescription,
	}

	if err := h.catalogService.CreateProduct(r.Context(), product); err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a product's catalog fields. Admin only.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product := &domain.Product{
		ID:                   productID,
		Name:                 req.Name,
		Description:          req.Description,
		Price:                req.Price,
		Category:             req.Category,
		ImageURL:             req.ImageURL,
		Stock:                req.Stock,
		RequiresPrescription: req.RequiresPrescription,
	}

	if err := h.catalogService.UpdateProduct(r.Context(), product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to update product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product from the catalog. Admin only.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to delete product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
