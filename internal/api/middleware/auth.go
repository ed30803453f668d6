package middleware

import (
	"context"
	"errors"
	"strings"

	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/rbac"
	"cmms/internal/repository"
	"cmms/internal/utils"
	"cmms/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserLookup loads the user behind a token.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type AuthMiddleware struct {
	tokens *utils.TokenIssuer
	users  UserLookup
}

func NewAuthMiddleware(tokens *utils.TokenIssuer, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Middleware authenticates the bearer token and places the principal on
// the context. The role is taken from the stored user so revocations
// apply without waiting for token expiry.
func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return apperr.Unauthenticated("Missing authorization header")
			}

			tokenParts := strings.SplitN(authHeader, " ", 2)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
				return apperr.Unauthenticated("Invalid authorization header format")
			}

			claims, err := m.tokens.Parse(strings.TrimSpace(tokenParts[1]), utils.TokenTypeAccess)
			if err != nil {
				logger.FromEcho(c).Debug("rejected token", zap.Error(err))
				return apperr.Unauthenticated("Invalid token")
			}

			user, err := m.users.FindByID(c.Request().Context(), claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Unauthenticated("User not found")
			}
			if err != nil {
				return apperr.Internal(err)
			}
			if !user.IsActive {
				return apperr.Unauthenticated("User is inactive")
			}

			c.Set(principalKey, &rbac.Principal{
				UserID:   user.ID,
				TenantID: user.TenantID,
				Email:    user.Email,
				Role:     user.Role,
			})
			return next(c)
		}
	}
}
