package userrepo

import (
	"context"
	"time"

	"github.com/wesrides/rides-api/internal/domain"
)

// User is the persistence shape used by the user repository. PasswordHash is
// stored here but never leaves the auth service.
type User struct {
	ID domain.UserID

	Name         string
	Email        string
	PasswordHash string

	PhoneNumber *string
	Instagram   *string
	Facebook    *string
	Snapchat    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted users.
type Repository interface {
	// Create inserts a new user. Returns ErrEmailAlreadyExists when another
	// user has the same email (case-insensitive).
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (User, error)
}
