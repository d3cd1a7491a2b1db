package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
)

// UserStore is a thread-safe in-memory directory. Its content is lost on
// restart.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	order []string
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

var _ repository.UserStore = (*UserStore)(nil)

func (s *UserStore) Init(ctx context.Context) error {
	return nil
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	key := strings.ToLower(user.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[key]; exists {
		return repository.ErrUserExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Username = key
	s.users[key] = *user
	s.order = append(s.order, key)
	return nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

// List returns users in insertion order.
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.users[key])
	}
	return out, nil
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
