package repository

import (
	"context"
	"errors"

	"filedrop/internal/model"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
// Implementations translate their backend's unique-violation error into it.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository defines data access for user accounts.
type UserRepository interface {
	// Create inserts a new user and returns the stored row.
	// Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByEmail returns a user by their email address.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}
