package repository

import (
	"context"
	"errors"

	"mensajeria/internal/domain"
)

var (
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a username is not in the directory.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore is the credential directory. Usernames are stored lowercase;
// Create must fail with ErrUserExists rather than overwrite.
type UserStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int, error)
}
