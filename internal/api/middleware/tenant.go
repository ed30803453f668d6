package middleware

import (
	"cmms/internal/apperr"
	"cmms/internal/tenant"

	"github.com/labstack/echo/v4"
)

const (
	HeaderTenantID   = "x-tenant-id"
	HeaderTenantSlug = "x-tenant-slug"
	HeaderPlantID    = "x-plant-id"
)

// Tenant resolves the tenant of the request: explicit headers first, then
// the subdomain, then the principal's home tenant, then the implicit
// default. Only superadmins may act on a tenant other than their own.
func Tenant(resolver *tenant.Resolver, baseDomain string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			tr := tenant.Request{
				TenantID:   req.Header.Get(HeaderTenantID),
				TenantSlug: req.Header.Get(HeaderTenantSlug),
			}
			if tr.TenantID == "" && tr.TenantSlug == "" {
				tr.TenantSlug = tenant.SlugFromHost(req.Host, baseDomain)
			}
			p := GetPrincipal(c)
			if tr.TenantID == "" && tr.TenantSlug == "" && p != nil {
				tr.TenantID = p.TenantID
			}

			info, err := resolver.Resolve(req.Context(), tr)
			if err != nil {
				return err
			}
			if p != nil && !p.IsSuperadmin() && p.TenantID != info.ID {
				return apperr.Forbidden("Tenant mismatch", "")
			}

			c.Set(tenantKey, info)
			return next(c)
		}
	}
}
