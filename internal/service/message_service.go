package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"mensajeria/internal/domain"
	"mensajeria/internal/repository"
)

// Peer status values reported by the resource service health check.
const (
	PeerConnected   = "conectado"
	PeerError       = "error"
	PeerUnavailable = "no disponible"
)

// ErrPeerUnhealthy is returned by a Peer that answered its health probe with
// a non-success status.
var ErrPeerUnhealthy = errors.New("credential authority unhealthy")

// Peer is the resource service's view of the credential authority.
type Peer interface {
	// ResolveCaller returns the identity behind an Authorization header, or
	// nil when none can be established for any reason.
	ResolveCaller(ctx context.Context, authorization string) *domain.Caller
	Health(ctx context.Context) error
}

// SaveResult reports a stored message and whether its writer was identified.
type SaveResult struct {
	Message       domain.Message
	Authenticated bool
}

// Health is the composite state of the resource service's dependencies.
type Health struct {
	DBConnected bool
	AuthStatus  string
}

// MessageService coordinates message storage with caller resolution.
type MessageService interface {
	Save(ctx context.Context, body, author, authorization string) (*SaveResult, error)
	ListAll(ctx context.Context) ([]domain.Message, error)
	ListProtected(ctx context.Context, authorization string) (*domain.Caller, []domain.Message, error)
	Delete(ctx context.Context, id int64, authorization string) (*domain.Caller, error)
	Health(ctx context.Context) Health
}

type messageService struct {
	messages repository.MessageRepository
	peer     Peer
	logger   logrus.FieldLogger
}

func NewMessageService(messages repository.MessageRepository, peer Peer, logger logrus.FieldLogger) MessageService {
	if logger == nil {
		logger = logrus.New()
	}
	return &messageService{
		messages: messages,
		peer:     peer,
		logger:   logger,
	}
}

// Save stores the message even when the caller cannot be resolved; such
// messages are attributed to domain.AnonymousUser.
func (s *messageService) Save(ctx context.Context, body, author, authorization string) (*SaveResult, error) {
	caller := s.peer.ResolveCaller(ctx, authorization)

	msg := domain.Message{
		Body:     body,
		Author:   author,
		Username: domain.AnonymousUser,
	}
	if caller != nil {
		msg.Username = caller.Username
	}

	if _, err := s.messages.Create(ctx, &msg); err != nil {
		return nil, err
	}
	return &SaveResult{Message: msg, Authenticated: caller != nil}, nil
}

func (s *messageService) ListAll(ctx context.Context) ([]domain.Message, error) {
	return s.messages.List(ctx)
}

func (s *messageService) ListProtected(ctx context.Context, authorization string) (*domain.Caller, []domain.Message, error) {
	caller, err := s.requireCaller(ctx, authorization)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.List(ctx)
	if err != nil {
		return caller, nil, err
	}
	return caller, messages, nil
}

// Delete removes a message; only admins may do so.
func (s *messageService) Delete(ctx context.Context, id int64, authorization string) (*domain.Caller, error) {
	caller, err := s.requireCaller(ctx, authorization)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return caller, ErrForbidden
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return caller, err
	}
	s.logger.WithFields(logrus.Fields{"id": id, "deleted_by": caller.Username}).Info("message deleted")
	return caller, nil
}

// Health never fails: storage and authority problems are reported separately.
func (s *messageService) Health(ctx context.Context) Health {
	h := Health{AuthStatus: PeerConnected}

	if err := s.messages.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health: database unreachable")
	} else {
		h.DBConnected = true
	}

	if err := s.peer.Health(ctx); err != nil {
		if errors.Is(err, ErrPeerUnhealthy) {
			h.AuthStatus = PeerError
		} else {
			h.AuthStatus = PeerUnavailable
		}
		s.logger.WithError(err).Warn("health: credential authority check failed")
	}
	return h
}

func (s *messageService) requireCaller(ctx context.Context, authorization string) (*domain.Caller, error) {
	if strings.TrimSpace(authorization) == "" {
		return nil, ErrUnauthenticated
	}
	caller := s.peer.ResolveCaller(ctx, authorization)
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	return caller, nil
}
