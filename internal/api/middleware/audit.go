package middleware

import (
	"context"
	"net/http"

	"cmms/internal/audit"

	"github.com/labstack/echo/v4"
)

// Auditor records audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// AuditTrail records every successful mutation routed through the group.
// superadmin marks entries for the superadmin stream.
func AuditTrail(auditor Auditor, superadmin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			method := c.Request().Method
			if err != nil || method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return err
			}
			status := c.Response().Status
			if status >= http.StatusBadRequest {
				return nil
			}

			entry := audit.Entry{
				TenantID:   GetTenantID(c),
				Superadmin: superadmin,
				ActorRole:  GetEffectiveRole(c),
				Action:     method + " " + c.Path(),
				EntityType: "http",
				EntityID:   c.Request().URL.Path,
				After:      map[string]any{"status": status},
				IPAddress:  c.RealIP(),
				RequestID:  GetRequestID(c),
			}
			if p := GetPrincipal(c); p != nil {
				entry.ActorID = p.UserID
			}
			auditor.Record(c.Request().Context(), entry)
			return nil
		}
	}
}

// ActorIP is the client address as resolved by the server's IP extractor.
func ActorIP(c echo.Context) string {
	return c.RealIP()
}
