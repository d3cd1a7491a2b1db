package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidInput rejects malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrWeakPassword is an ErrInvalidInput for passwords below the minimum length.
	ErrWeakPassword = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	// ErrUnauthenticated means no valid identity could be established.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the identity is valid but its role is insufficient.
	ErrForbidden = errors.New("forbidden")
)
