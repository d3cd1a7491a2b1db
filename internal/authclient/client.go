// Package authclient lets the resource service ask the credential authority
// who is behind a bearer token.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mensajeria/internal/domain"
	"mensajeria/internal/service"
)

// DefaultTimeout bounds every round-trip to the authority.
const DefaultTimeout = 5 * time.Second

// ErrPeerUnreachable wraps transport failures talking to the authority.
var ErrPeerUnreachable = errors.New("credential authority unreachable")

// Introspection mirrors the authority's /validate response.
type Introspection struct {
	Valid    bool        `json:"valid"`
	Username string      `json:"username,omitempty"`
	Role     domain.Role `json:"rol,omitempty"`
	Message  string      `json:"message"`
}

// Client calls the authority over HTTP. Results are never cached.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logrus.FieldLogger
}

func New(baseURL string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ service.Peer = (*Client)(nil)

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Introspect forwards token to GET /validate.
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: validate returned %d", service.ErrPeerUnhealthy, resp.StatusCode)
	}

	var out Introspection
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return &out, nil
}

// ResolveCaller strips an optional "Bearer " prefix and introspects the
// rest. Every failure collapses to nil.
func (c *Client) ResolveCaller(ctx context.Context, authorization string) *domain.Caller {
	token := strings.TrimSpace(authorization)
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil
	}

	res, err := c.Introspect(ctx, token)
	if err != nil {
		c.logger.WithError(err).Warn("token introspection failed")
		return nil
	}
	if !res.Valid || res.Username == "" {
		c.logger.WithField("reason", res.Message).Debug("token rejected by authority")
		return nil
	}
	return &domain.Caller{Username: res.Username, Role: res.Role}
}

// Health probes the authority's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", service.ErrPeerUnhealthy, resp.StatusCode)
	}
	return nil
}
