package repository

import (
	"context"
	"database/sql"
	"fmt"

	"asha-medical/internal/domain"
)

// ContactRepository defines the interface for contact message persistence.
type ContactRepository interface {
	Create(ctx context.Context, message *domain.ContactMessage) error
}

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new instance of ContactRepository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

// Create inserts a contact message using parameterized queries
func (r *contactRepository) Create(ctx context.Context, message *domain.ContactMessage) error {
	query := `
		INSERT INTO contact_messages (id, name, email, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		message.ID,
		message.Name,
		message.Email,
		message.Phone,
		message.Message,
		message.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}

	return nil
}
