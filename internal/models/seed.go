package models

import (
	"errors"
	"fmt"
	"strings"

	"cmms/internal/config"

	"golang.org/x/crypto/bcrypt"

	console "cmms/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// Permission keys known to the API.
const (
	PermSetupRun       = "setup:run"
	PermAdminRBAC      = "admin:rbac"
	PermAdminUsers     = "admin:users"
	PermAdminPlants    = "admin:plants"
	PermAdminWorkflows = "admin:workflows"
	PermAdminSLA       = "admin:sla"
	PermAdminAudit     = "admin:audit"

	PermWorkOrdersCreate = "work_orders:create"
	PermWorkOrdersRead   = "work_orders:read"
	PermWorkOrdersUpdate = "work_orders:update"
	PermTicketsCreate    = "tickets:create"
	PermTicketsRead      = "tickets:read"
	PermTicketsUpdate    = "tickets:update"
	PermWorkflowsRead    = "workflows:read"
)

// PermissionCatalog lists every grantable permission key.
var PermissionCatalog = []string{
	PermSetupRun, PermAdminRBAC, PermAdminUsers, PermAdminPlants,
	PermAdminWorkflows, PermAdminSLA, PermAdminAudit,
	PermWorkOrdersCreate, PermWorkOrdersRead, PermWorkOrdersUpdate,
	PermTicketsCreate, PermTicketsRead, PermTicketsUpdate,
	PermWorkflowsRead,
}

// Role-based permission mappings seeded into a fresh tenant
var defaultRolePermissions = map[string][]string{
	RoleAdminEmpresa: {"*:*"},
	RoleGestor: {
		"work_orders:*", "tickets:*", PermWorkflowsRead, PermAdminWorkflows, PermAdminSLA,
	},
	RoleSupervisor: {
		PermWorkOrdersRead, PermWorkOrdersUpdate, PermTicketsRead, PermWorkflowsRead,
	},
	RoleTecnico: {
		PermWorkOrdersRead, PermWorkOrdersUpdate, PermTicketsRead, PermWorkflowsRead,
	},
	RoleSolicitante: {
		PermWorkOrdersCreate, PermWorkOrdersRead, PermTicketsCreate, PermTicketsRead,
	},
}

// IsKnownPermission reports whether key is in the catalog.
func IsKnownPermission(key string) bool {
	for _, p := range PermissionCatalog {
		if p == key {
			return true
		}
	}
	return false
}

// expandPermission resolves "resource:*" and "*:*" against the catalog.
func expandPermission(scope string) ([]string, error) {
	if scope == "*:*" {
		return PermissionCatalog, nil
	}
	if strings.HasSuffix(scope, ":*") {
		prefix := strings.TrimSuffix(scope, "*")
		var out []string
		for _, p := range PermissionCatalog {
			if strings.HasPrefix(p, prefix) {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no permissions match %s", scope)
		}
		return out, nil
	}
	if !IsKnownPermission(scope) {
		return nil, fmt.Errorf("invalid permission scope: %s", scope)
	}
	return []string{scope}, nil
}

// DefaultGrants returns the seeded role -> permission matrix, expanded.
func DefaultGrants() (map[string][]string, error) {
	out := make(map[string][]string, len(defaultRolePermissions))
	for role, scopes := range defaultRolePermissions {
		for _, scope := range scopes {
			perms, err := expandPermission(scope)
			if err != nil {
				return nil, err
			}
			out[role] = append(out[role], perms...)
		}
	}
	return out, nil
}

// SeedTenantPermissions writes the default grant matrix for one tenant. It
// is idempotent and returns how many grants were created.
func SeedTenantPermissions(db *gorm.DB, tenantID string) (int, error) {
	grants, err := DefaultGrants()
	if err != nil {
		return 0, err
	}

	created := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for role, perms := range grants {
			log.Info("Seeding %d permissions for role %s in tenant %s", len(perms), role, tenantID)
			for _, perm := range perms {
				var existing int64
				err := tx.Model(&RolePermission{}).
					Where("tenant_id = ? AND role_key = ? AND permission_key = ?", tenantID, role, perm).
					Count(&existing).Error
				if err != nil {
					return fmt.Errorf("failed to check grant %s/%s: %w", role, perm, err)
				}
				if existing > 0 {
					continue
				}
				grant := RolePermission{TenantID: tenantID, RoleKey: role, PermissionKey: perm}
				if err := tx.Create(&grant).Error; err != nil {
					return fmt.Errorf("failed to create grant %s/%s: %w", role, perm, err)
				}
				created++
			}
		}
		return nil
	})
	return created, err
}

// EnsureTenant returns the tenant with slug, creating it when missing.
func EnsureTenant(db *gorm.DB, slug, name string) (*Tenant, error) {
	var tenant Tenant
	err := db.Where("slug = ?", slug).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tenant = Tenant{Slug: slug, Name: name, IsActive: true, SlaExcludePause: true}
	if err := db.Create(&tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant %s: %w", slug, err)
	}
	return &tenant, nil
}

func CreateSuperAdminFromEnv(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&User{}).Where("role = ?", RoleSuperadmin).Count(&count).Error; err != nil {
		return err
	}
	log.Info("Super admin count: %d", count)
	if count > 0 {
		return nil
	}

	if cfg.Admin.SuperadminEmail == "" {
		return fmt.Errorf("SUPERADMIN_EMAIL not set")
	}
	if cfg.Admin.SuperadminPassword == "" {
		return fmt.Errorf("SUPERADMIN_PASSWORD not set")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.SuperadminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	tenant, err := EnsureTenant(db, cfg.Admin.SuperadminTenant, "Default")
	if err != nil {
		return err
	}

	user := User{
		TenantID: tenant.ID,
		Name:     cfg.Admin.SuperadminName,
		Email:    cfg.Admin.SuperadminEmail,
		Role:     RoleSuperadmin,
		Password: string(hashedPassword),
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create superadmin user: %v", err)
	}

	return nil
}
