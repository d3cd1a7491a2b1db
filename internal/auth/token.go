package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mensajeria/internal/domain"
)

var (
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers bad signatures, malformed tokens and foreign algorithms.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenMissing is returned when no token was presented.
	ErrTokenMissing = errors.New("token missing")
)

// Reason explains why a token failed verification.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
	ReasonExpired Reason = "expired"
)

// Claims is the JWT payload: sub, rol, iat and exp.
type Claims struct {
	Role domain.Role `json:"rol"`
	jwt.RegisteredClaims
}

// Verification is the outcome of checking a token.
type Verification struct {
	Valid   bool
	Subject string
	Role    domain.Role
	Reason  Reason
}

// Err maps a failed verification to its sentinel error.
func (v Verification) Err() error {
	switch {
	case v.Valid:
		return nil
	case v.Reason == ReasonExpired:
		return ErrTokenExpired
	case v.Reason == ReasonMissing:
		return ErrTokenMissing
	default:
		return ErrTokenInvalid
	}
}

// Manager mints and verifies HS256 tokens with a process-wide secret. Every
// verifier must be configured with the same secret; there is no key id, no
// revocation list and no clock-skew leeway.
type Manager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock returns a copy of m that reads time from now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// TTL is the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for username/role. It returns the token and its expiry.
func (m *Manager) Issue(username string, role domain.Role) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature first and expiry second.
func (m *Manager) Verify(token string) Verification {
	token = strings.TrimSpace(token)
	if token == "" {
		return Verification{Reason: ReasonMissing}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verification{Reason: ReasonExpired}
		}
		return Verification{Reason: ReasonInvalid}
	}
	if !parsed.Valid || claims.Subject == "" {
		return Verification{Reason: ReasonInvalid}
	}

	return Verification{
		Valid:   true,
		Subject: claims.Subject,
		Role:    claims.Role,
	}
}

// BearerToken extracts the credential of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively; any other scheme yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
