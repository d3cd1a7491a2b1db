package repository

import (
	"context"
	"errors"

	"mensajeria/internal/domain"
)

var (
	// ErrStorageUnavailable wraps failures to reach the message database.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrMessageNotFound is returned when deleting an unknown id.
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepository persists messages of the resource service.
type MessageRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, msg *domain.Message) (int64, error)
	List(ctx context.Context) ([]domain.Message, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}
