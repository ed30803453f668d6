// Package rbac implements tenant-scoped, permission-based access control
// with per-plant role overrides.
package rbac

import (
	"context"
	"time"

	"cmms/internal/models"
)

// Store is the grant lookup surface. Implementations return
// repository.ErrNotProvisioned when the RBAC tables do not exist.
type Store interface {
	PlantRole(ctx context.Context, userID, plantID string) (string, bool, error)
	HasGrant(ctx context.Context, tenantID, roleKey, permissionKey string) (bool, error)
	CountGrants(ctx context.Context, tenantID string) (int64, error)
	PlantInTenant(ctx context.Context, tenantID, plantID string) (bool, error)
}

// NormalizeRole trims and lowercases raw. An empty result means no role.
func NormalizeRole(raw string) string {
	return models.NormalizeRole(raw)
}

// Engine answers grant questions against the store, bounding every call
// with a timeout.
type Engine struct {
	store   Store
	timeout time.Duration
}

func NewEngine(store Store, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{store: store, timeout: timeout}
}

// UserRoleForPlant returns the plant-scoped override for userID. ok is
// false when there is none, meaning the global role applies.
func (e *Engine) UserRoleForPlant(ctx context.Context, userID, plantID string) (role string, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.PlantRole(ctx, userID, plantID)
}

// RoleHasPermission checks the tenant's grant set for (roleKey, permissionKey).
func (e *Engine) RoleHasPermission(ctx context.Context, tenantID, roleKey, permissionKey string) (bool, error) {
	roleKey = NormalizeRole(roleKey)
	if roleKey == "" || permissionKey == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.HasGrant(ctx, tenantID, roleKey, permissionKey)
}

// TenantHasAnyPermission reports whether any grant exists in the tenant.
func (e *Engine) TenantHasAnyPermission(ctx context.Context, tenantID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	n, err := e.store.CountGrants(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PlantInTenant reports whether plantID belongs to tenantID.
func (e *Engine) PlantInTenant(ctx context.Context, tenantID, plantID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.PlantInTenant(ctx, tenantID, plantID)
}
