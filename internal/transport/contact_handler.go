package transport

import (
	"net/http"

	"asha-medical/internal/middleware"
	"asha-medical/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContactRequest represents the contact form payload
type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,min=7,max=20"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

// ContactHandler handles HTTP requests for the contact form
type ContactHandler struct {
	contactService service.ContactService
	logger         *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// RegisterRoutes registers the contact route
func (h *ContactHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/contact", h.Submit)
}

// Submit stores a message from the contact form
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contact, err := h.contactService.Submit(r.Context(), req.Name, req.Email, req.Phone, req.Message)
	if err != nil {
		h.logger.Error("Failed to store contact message", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to submit message")
		return
	}

	h.logger.Info("Contact message received", zap.String("message_id", contact.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]string{
		"message": "Thank you for contacting us. We will get back to you soon.",
	})
}
