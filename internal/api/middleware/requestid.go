package middleware

import (
	"cmms/internal/utils/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID reuses the caller's X-Request-ID or mints one, echoes it back
// and attaches a request-scoped zap logger.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(logger.RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Set(logger.RequestIDKey, id)
			c.Response().Header().Set(logger.RequestIDHeader, id)
			logger.WithRequest(c, id)
			return next(c)
		}
	}
}
