package transport

import (
	"errors"
	"net/http"

	"asha-medical/internal/middleware"
	"asha-medical/internal/repository"
	"asha-medical/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddToCartRequest represents the cart add request payload
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateCartRequest represents the cart update request payload.
// Quantity zero removes the item, so min is 0 here.
type UpdateCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"min=0"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes. Every route requires an
// authenticated owner.
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/add", h.AddToCart)
		r.Put("/update", h.UpdateCart)
		r.Delete("/clear", h.ClearCart)
	})
}

// GetCart returns the caller's cart with a live-computed total
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cart, err := h.cartService.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to read cart", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to read cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddToCart adds a product to the caller's cart, merging quantities when
// the product is already present
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	cart, err := h.cartService.Add(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, "Failed to add item to cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// UpdateCart overwrites a cart item's quantity; zero removes the item
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	cart, err := h.cartService.SetQuantity(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, "Failed to update cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// ClearCart removes every item from the caller's cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cart, err := h.cartService.Clear(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to clear cart", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) respondCartError(w http.ResponseWriter, err error, logMessage string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartItemNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(logMessage, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requestUserID resolves the authenticated user's id from the request
// context populated by the auth middleware.
func requestUserID(r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}

	return userID, true
}
