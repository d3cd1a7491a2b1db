package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"mensajeria/internal/auth"
	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 4

// LoginResult is returned on successful authentication.
type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	Profile     domain.Profile
}

// UserService describes directory and credential operations of the authority.
type UserService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Register(ctx context.Context, username, password, name, email string) (*domain.Profile, error)
	Verify(token string) auth.Verification
	Authorize(token string, role domain.Role) (*domain.Caller, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context, seeds []SeedUser) error
}

type userService struct {
	users  repository.UserStore
	tokens *auth.Manager
	logger logrus.FieldLogger

	// compared against when the username is unknown so both failure paths
	// cost one bcrypt comparison
	dummyHash []byte
}

func NewUserService(users repository.UserStore, tokens *auth.Manager, logger logrus.FieldLogger) (UserService, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &userService{
		users:     users,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.logger.WithField("username", username).Warn("login failed: unknown user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"username": user.Username, "rol": user.Role}).Info("login succeeded")
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   s.tokens.TTL(),
		Profile:     user.Profile(),
	}, nil
}

// Register inserts a new user with role usuario. Email is stored as given.
func (s *userService) Register(ctx context.Context, username, password, name, email string) (*domain.Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Email:        email,
		Role:         domain.RoleUsuario,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	s.logger.WithField("username", username).Info("user registered")
	profile := user.Profile()
	return &profile, nil
}

func (s *userService) Verify(token string) auth.Verification {
	return s.tokens.Verify(token)
}

// Authorize verifies token and requires its role to equal role. A failed
// verification wraps ErrUnauthenticated around the token error.
func (s *userService) Authorize(token string, role domain.Role) (*domain.Caller, error) {
	v := s.tokens.Verify(token)
	if !v.Valid {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, v.Err())
	}
	caller := &domain.Caller{Username: v.Subject, Role: v.Role}
	if caller.Role != role {
		return caller, ErrForbidden
	}
	return caller, nil
}

func (s *userService) List(ctx context.Context) ([]domain.Profile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, len(users))
	for i := range users {
		profiles[i] = users[i].Profile()
	}
	return profiles, nil
}

func (s *userService) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
