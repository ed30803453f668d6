package middleware

import (
	"cmms/internal/apperr"
	"cmms/internal/rbac"

	"github.com/labstack/echo/v4"
)

// PlantIDFromRequest reads the target plant from the :plantId path
// parameter, the x-plant-id header or the plantId query, in that order.
func PlantIDFromRequest(c echo.Context) string {
	if id := c.Param("plantId"); id != "" {
		return id
	}
	if id := c.Request().Header.Get(HeaderPlantID); id != "" {
		return id
	}
	return c.QueryParam("plantId")
}

// RequirePermission gates a route on permission at scope. It must run
// after the auth and tenant middleware.
func RequirePermission(guard *rbac.Guard, permission string, scope rbac.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := rbac.Request{
				Principal:  GetPrincipal(c),
				TenantID:   GetTenantID(c),
				Permission: permission,
				Scope:      scope,
			}
			if scope == rbac.ScopePlant {
				req.PlantID = PlantIDFromRequest(c)
			}

			decision, err := guard.Authorize(c.Request().Context(), req)
			if err != nil {
				return err
			}
			c.Set(decisionKey, decision)
			if req.PlantID != "" {
				c.Set(plantKey, req.PlantID)
			}
			return next(c)
		}
	}
}

// RequireSuperadmin restricts a route to platform operators.
func RequireSuperadmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return apperr.Unauthenticated("Authentication required")
			}
			if !p.IsSuperadmin() {
				return apperr.Forbidden("Superadmin only", "")
			}
			return next(c)
		}
	}
}
