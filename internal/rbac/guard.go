package rbac

import (
	"context"
	"errors"

	"cmms/internal/apperr"
	"cmms/internal/metrics"
	"cmms/internal/models"
	"cmms/internal/repository"
	console "cmms/internal/utils/logger"
)

var log = console.New("RBAC")

type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopePlant  Scope = "plant"
)

// BootstrapPermissions are the only keys a tenant administrator may use
// while the tenant has no grants at all.
var BootstrapPermissions = map[string]struct{}{
	models.PermSetupRun:    {},
	models.PermAdminRBAC:   {},
	models.PermAdminUsers:  {},
	models.PermAdminPlants: {},
}

func IsBootstrapPermission(key string) bool {
	_, ok := BootstrapPermissions[key]
	return ok
}

// Principal is the authenticated caller. Role is the raw global role.
type Principal struct {
	UserID   string
	TenantID string
	Email    string
	Role     string
}

func (p *Principal) IsSuperadmin() bool {
	return p != nil && NormalizeRole(p.Role) == models.RoleSuperadmin
}

// Request is one authorization question.
type Request struct {
	Principal  *Principal
	TenantID   string
	PlantID    string
	Permission string
	Scope      Scope
}

// Reason explains why a request was allowed.
type Reason string

const (
	ReasonSuperadmin     Reason = "superadmin"
	ReasonGranted        Reason = "granted"
	ReasonBreakGlass     Reason = "break_glass"
	ReasonLegacyFallback Reason = "legacy_fallback"
)

// Decision is the outcome of an allowed request.
type Decision struct {
	Reason        Reason
	EffectiveRole string
}

// BreakGlassHook is notified every time the bootstrap bypass is used.
type BreakGlassHook func(ctx context.Context, req Request)

type Guard struct {
	engine       *Engine
	onBreakGlass BreakGlassHook
}

func NewGuard(engine *Engine, onBreakGlass BreakGlassHook) *Guard {
	return &Guard{engine: engine, onBreakGlass: onBreakGlass}
}

// Authorize allows or rejects req. Rejections are *apperr.Error values of
// kind Unauthenticated, InvalidInput, NotFound, Forbidden or Internal.
func (g *Guard) Authorize(ctx context.Context, req Request) (Decision, error) {
	d, err := g.authorize(ctx, req)
	if err != nil {
		metrics.PermissionDecisions.WithLabelValues("deny", apperr.As(err).Kind.String()).Inc()
		return d, err
	}
	metrics.PermissionDecisions.WithLabelValues("allow", string(d.Reason)).Inc()
	return d, nil
}

func (g *Guard) authorize(ctx context.Context, req Request) (Decision, error) {
	p := req.Principal
	if p == nil || p.UserID == "" {
		return Decision{}, apperr.Unauthenticated("Authentication required")
	}
	if req.TenantID == "" {
		return Decision{}, apperr.InvalidInput("Tenant could not be resolved")
	}

	globalRole := NormalizeRole(p.Role)
	if globalRole == models.RoleSuperadmin {
		return Decision{Reason: ReasonSuperadmin, EffectiveRole: globalRole}, nil
	}

	// Legacy tokens carry role strings that may not be normalised, so the
	// raw global role is the fallback.
	effective := p.Role
	if req.Scope == ScopePlant {
		if req.PlantID == "" {
			return Decision{}, apperr.InvalidInput("Plant id is required")
		}
		inTenant, err := g.engine.PlantInTenant(ctx, req.TenantID, req.PlantID)
		if err != nil {
			return Decision{}, apperr.Internal(err)
		}
		if !inTenant {
			return Decision{}, apperr.NotFound("Plant not found")
		}
		override, ok, err := g.engine.UserRoleForPlant(ctx, p.UserID, req.PlantID)
		if err != nil {
			return g.storeFailure(err, req, NormalizeRole(effective))
		}
		if ok {
			effective = override
		}
	}

	role := NormalizeRole(effective)
	if role == "" {
		return Decision{}, apperr.Forbidden("No role assigned", req.Permission)
	}

	granted, err := g.engine.RoleHasPermission(ctx, req.TenantID, role, req.Permission)
	if err != nil {
		return g.storeFailure(err, req, role)
	}
	if granted {
		return Decision{Reason: ReasonGranted, EffectiveRole: role}, nil
	}

	if req.Scope == ScopeTenant && p.Role == models.RoleAdminEmpresa && IsBootstrapPermission(req.Permission) {
		hasGrants, err := g.engine.TenantHasAnyPermission(ctx, req.TenantID)
		if err != nil {
			return g.storeFailure(err, req, role)
		}
		if !hasGrants {
			log.Warn("Break-glass grant of %s to user %s in tenant %s", req.Permission, p.UserID, req.TenantID)
			metrics.BreakGlassGrants.WithLabelValues(req.Permission).Inc()
			if g.onBreakGlass != nil {
				g.onBreakGlass(ctx, req)
			}
			return Decision{Reason: ReasonBreakGlass, EffectiveRole: role}, nil
		}
	}

	return Decision{}, apperr.Forbidden("Missing permission "+req.Permission, req.Permission)
}

// storeFailure degrades to a role comparison when the RBAC schema is not
// provisioned and surfaces anything else as Internal.
func (g *Guard) storeFailure(err error, req Request, role string) (Decision, error) {
	if !errors.Is(err, repository.ErrNotProvisioned) {
		return Decision{}, apperr.Internal(err)
	}
	if role == models.RoleSuperadmin || role == models.RoleAdminEmpresa {
		return Decision{Reason: ReasonLegacyFallback, EffectiveRole: role}, nil
	}
	return Decision{}, apperr.Forbidden("RBAC not yet applied", req.Permission)
}
