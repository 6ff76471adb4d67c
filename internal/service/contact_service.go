package service

import (
	"context"
	"fmt"
	"time"

	"asha-medical/internal/domain"
	"asha-medical/internal/repository"

	"github.com/google/uuid"
)

// ContactService persists messages from the store contact form.
type ContactService interface {
	Submit(ctx context.Context, name, email, phone, message string) (*domain.ContactMessage, error)
}

type contactService struct {
	contactRepo repository.ContactRepository
}

// NewContactService creates a new instance of ContactService
func NewContactService(contactRepo repository.ContactRepository) ContactService {
	return &contactService{contactRepo: contactRepo}
}

// Submit stores a contact message.
func (s *contactService) Submit(ctx context.Context, name, email, phone, message string) (*domain.ContactMessage, error) {
	contact := &domain.ContactMessage{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.contactRepo.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to store contact message: %w", err)
	}

	return contact, nil
}
