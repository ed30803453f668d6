package middleware

import (
	"cmms/internal/audit"

	"github.com/labstack/echo/v4"
)

// ReadOnly blocks writes against a tenant flagged read-only.
func ReadOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			info, _ := GetTenant(c)
			if err := audit.CheckWriteAllowed(c.Request().Method, c.Request().URL.Path, info.IsReadOnly); err != nil {
				return err
			}
			return next(c)
		}
	}
}
