package middleware

import (
	"cmms/internal/rbac"
	"cmms/internal/tenant"
	"cmms/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// Context keys set by the middleware chain.
const (
	principalKey = "principal"
	tenantKey    = "tenant"
	decisionKey  = "decision"
	plantKey     = "plantID"
)

// GetPrincipal Helper functions to get values from context
func GetPrincipal(c echo.Context) *rbac.Principal {
	if p, ok := c.Get(principalKey).(*rbac.Principal); ok {
		return p
	}
	return nil
}

func GetUserID(c echo.Context) string {
	if p := GetPrincipal(c); p != nil {
		return p.UserID
	}
	return ""
}

// GetTenant returns the resolved tenant. ok is false before the tenant
// middleware has run.
func GetTenant(c echo.Context) (tenant.Info, bool) {
	info, ok := c.Get(tenantKey).(tenant.Info)
	return info, ok
}

func GetTenantID(c echo.Context) string {
	info, _ := GetTenant(c)
	return info.ID
}

// GetDecision returns the guard's decision for the current route.
func GetDecision(c echo.Context) (rbac.Decision, bool) {
	d, ok := c.Get(decisionKey).(rbac.Decision)
	return d, ok
}

// GetEffectiveRole is the plant-aware role the guard authorised with,
// falling back to the principal's global role.
func GetEffectiveRole(c echo.Context) string {
	if d, ok := GetDecision(c); ok && d.EffectiveRole != "" {
		return d.EffectiveRole
	}
	if p := GetPrincipal(c); p != nil {
		return rbac.NormalizeRole(p.Role)
	}
	return ""
}

// GetPlantID returns the plant the guard authorised against.
func GetPlantID(c echo.Context) string {
	if id, ok := c.Get(plantKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(logger.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
