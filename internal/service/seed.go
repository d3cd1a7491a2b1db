package service

import (
	"context"
	"errors"
	"fmt"

	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
)

// SeedUser is a directory entry created at startup.
type SeedUser struct {
	Username string
	Password string
	Name     string
	Email    string
	Role     domain.Role
}

// DefaultSeedUsers is the simulated user set.
var DefaultSeedUsers = []SeedUser{
	{Username: "admin", Password: "admin123", Name: "Administrador", Email: "admin@sistema.com", Role: domain.RoleAdmin},
	{Username: "usuario1", Password: "user123", Name: "Usuario Uno", Email: "usuario1@sistema.com", Role: domain.RoleUsuario},
	{Username: "usuario2", Password: "user456", Name: "Usuario Dos", Email: "usuario2@sistema.com", Role: domain.RoleUsuario},
	{Username: "invitado", Password: "guest", Name: "Invitado", Email: "invitado@sistema.com", Role: domain.RoleGuest},
}

// Seed inserts seeds that are not yet present. Existing users are left as
// they are, so a persistent store keeps its registrations across restarts.
func (s *userService) Seed(ctx context.Context, seeds []SeedUser) error {
	for _, seed := range seeds {
		hash, err := hashPassword(seed.Password)
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Username, err)
		}
		err = s.users.Create(ctx, &domain.User{
			Username:     seed.Username,
			PasswordHash: hash,
			Name:         seed.Name,
			Email:        seed.Email,
			Role:         seed.Role,
		})
		if err != nil && !errors.Is(err, repository.ErrUserExists) {
			return fmt.Errorf("seed %s: %w", seed.Username, err)
		}
	}
	return nil
}
