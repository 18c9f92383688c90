package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/infrastructure/cache"
)

var tracer = otel.Tracer("service")

// RoleAdmin may change annotation rankings.
const RoleAdmin = "admin"

type UserLoader interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

type AuthService struct {
	sessions *cache.Cache
	users    UserLoader
}

func NewAuthService(sessions *cache.Cache, users UserLoader) *AuthService {
	return &AuthService{
		sessions: sessions,
		users:    users,
	}
}

// SessionKey is where the session issuer stores the session for token.
func SessionKey(token string) string {
	return "session::" + token
}

// Authenticate maps a bearer token to its user through the session cache.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	var session domain.Session
	if !s.sessions.Get(ctx, SessionKey(token), &session) || session.UserID == "" {
		err := fmt.Errorf("unknown session")
		span.RecordError(err)
		return nil, err
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "load session user"))
		return nil, errors.Wrap(err, "load session user")
	}
	user.CanRank = user.Role == RoleAdmin

	span.SetAttributes(attribute.String("user", user.ID))
	return user, nil
}

func (s *AuthService) EndSession(ctx context.Context, token string) {
	ctx, span := tracer.Start(ctx, "Auth.Service.EndSession")
	defer span.End()

	s.sessions.Del(ctx, SessionKey(token))
}
