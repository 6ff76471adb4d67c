package repository

import (
	"context"
	"testing"
	"time"

	"asha-medical/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

func createUsersTable(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			phone VARCHAR(20) NOT NULL,
			name VARCHAR(100) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create users table: %v", err)
	}
}

func TestProperty_StoredPasswordsAreBcryptHashes(t *testing.T) {
	createUsersTable(t)

	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, phone string, name string) bool {
			// Clean up before each test
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			// Hash the password with bcrypt
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				t.Logf("Failed to hash password: %v", err)
				return false
			}

			// Create user with hashed password
			user := &domain.User{
				ID:           uuid.New(),
				Email:        email,
				Phone:        phone,
				Name:         name,
				PasswordHash: string(hashedPassword),
				Role:         "user",
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}

			// Store the user
			err = repo.Create(ctx, user)
			if err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			// Retrieve the user
			retrievedUser, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}

			// Verify the password is hashed (not equal to plaintext)
			if retrievedUser.PasswordHash == password {
				t.Logf("Password was stored as plaintext!")
				return false
			}

			// Verify the stored hash is a valid bcrypt hash by comparing
			err = bcrypt.CompareHashAndPassword([]byte(retrievedUser.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("Stored password is not a valid bcrypt hash: %v", err)
				return false
			}

			// Clean up after test
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			return true
		},
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		// Generate phone numbers
		gen.RegexMatch(`\+91[0-9]{10}`),
		// Generate names
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	createUsersTable(t)

	repo := NewUserRepository(testDB)
	ctx := context.Background()

	email := uuid.NewString() + "@example.com"
	newUser := func() *domain.User {
		return &domain.User{
			ID:           uuid.New(),
			Email:        email,
			Phone:        "+919876543210",
			Name:         "Asha Patient",
			PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
			Role:         "user",
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
	}

	if err := repo.Create(ctx, newUser()); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	t.Cleanup(func() { _, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email) })

	if err := repo.Create(ctx, newUser()); err != ErrUserAlreadyExists {
		t.Fatalf("Expected ErrUserAlreadyExists for duplicate email, got: %v", err)
	}
}
