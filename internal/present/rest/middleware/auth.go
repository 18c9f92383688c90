package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyIdentity attaches the requesting user to the request context when a
// valid bearer token is present. Anonymous requests pass through.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		authHeader := c.Request().Header.Get(domain.AuthorizationHeader)

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			user, err := s.auth.Authenticate(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.Authenticate failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, user.ID)
			ctx = context.WithValue(ctx, domain.RequesterUserCtxKey, user)
			ctx = context.WithValue(ctx, domain.RequesterTokenCtxKey, token)
			span.SetAttributes(attribute.String("RequesterId", user.ID))
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Requester returns the user attached by IdentifyIdentity, or nil.
func Requester(ctx context.Context) *domain.User {
	user, _ := ctx.Value(domain.RequesterUserCtxKey).(*domain.User)
	return user
}

// RequesterToken returns the bearer token that identified the requester.
func RequesterToken(ctx context.Context) string {
	token, _ := ctx.Value(domain.RequesterTokenCtxKey).(string)
	return token
}
