package transport

import (
	"encoding/json"
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

// CreateOrderRequest represents the checkout payload. Field checks are
// performed by the order service in a defined sequence (cart, payment
// method, upi id, address, phone), so the struct carries no validation
// tags.
type CreateOrderRequest struct {
	PaymentMethod    string `json:"payment_method"`
	UPIID            string `json:"upi_id"`
	DeliveryAddress  string `json:"delivery_address"`
	Phone            string `json:"phone"`
	PrescriptionData string `json:"prescription_data"`
}

// UpdateOrderStatusRequest represents the admin status transition payload
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Delivered"`
}

// CreateOrderResponse is returned on successful placement
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Patch("/{id}/status", h.UpdateStatus)
		})
	})
}

// CreateOrder places an order from the caller's cart
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.Place(r.Context(), userID, service.PlaceOrderInput{
		PaymentMethod:    req.PaymentMethod,
		UPIID:            req.UPIID,
		DeliveryAddress:  req.DeliveryAddress,
		Phone:            req.Phone,
		PrescriptionData: req.PrescriptionData,
	})
	if err != nil {
		h.respondOrderError(w, err)
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("total_amount", order.TotalAmount),
		zap.Bool("requires_prescription", order.RequiresPrescription),
	)

	middleware.RespondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID: order.ID.String(),
		Message: "Order placed successfully",
	})
}

// ListOrders returns the caller's orders, most recent first
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orderService.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the caller's orders. Orders of other users are
// indistinguishable from missing ones.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.orderService.GetForUser(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("Failed to get order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus advances an order through the fulfillment lifecycle.
// Admin only.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidStatus):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidTransition),
			errors.Is(err, repository.ErrStatusConflict):
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Failed to update order status", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update order status")
		}
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrMissingUPIID),
		errors.Is(err, service.ErrMissingDeliveryAddress),
		errors.Is(err, service.ErrMissingPhone),
		errors.Is(err, service.ErrPrescriptionBadFormat):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPrescriptionTooLarge):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Failed to place order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
	}
}
