package repository

import (
	"context"
	"errors"
	"sync/atomic"

	"cmms/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RBACRepository reads and writes role grants and plant role overrides.
// Every call first confirms the RBAC tables exist; a positive check is
// cached for the life of the process.
type RBACRepository struct {
	db          *gorm.DB
	provisioned atomic.Bool
}

func NewRBACRepository(db *gorm.DB) *RBACRepository {
	return &RBACRepository{db: db}
}

// SchemaReady returns ErrNotProvisioned until both RBAC tables exist.
func (r *RBACRepository) SchemaReady(ctx context.Context) error {
	if r.provisioned.Load() {
		return nil
	}
	m := r.db.WithContext(ctx).Migrator()
	if !m.HasTable(&models.RolePermission{}) || !m.HasTable(&models.UserPlantRole{}) {
		return ErrNotProvisioned
	}
	r.provisioned.Store(true)
	return nil
}

// MarkProvisioned skips the schema probe when the tables are known to
// exist, for instance right after an auto-migration.
func (r *RBACRepository) MarkProvisioned() {
	r.provisioned.Store(true)
}

// classify maps a dropped table seen mid-flight back to ErrNotProvisioned.
func (r *RBACRepository) classify(err error) error {
	if isUndefinedTable(err) {
		r.provisioned.Store(false)
		return ErrNotProvisioned
	}
	return err
}

// PlantRole returns the user's role override for plant, if any.
func (r *RBACRepository) PlantRole(ctx context.Context, userID, plantID string) (string, bool, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return "", false, err
	}
	var row models.UserPlantRole
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND plant_id = ?", userID, plantID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.classify(err)
	}
	return row.Role, true, nil
}

func (r *RBACRepository) HasGrant(ctx context.Context, tenantID, roleKey, permissionKey string) (bool, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return false, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RolePermission{}).
		Where("tenant_id = ? AND role_key = ? AND permission_key = ?", tenantID, roleKey, permissionKey).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, r.classify(err)
	}
	return count > 0, nil
}

// CountGrants counts every grant in the tenant, across all roles.
func (r *RBACRepository) CountGrants(ctx context.Context, tenantID string) (int64, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return 0, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RolePermission{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	if err != nil {
		return 0, r.classify(err)
	}
	return count, nil
}

// PlantInTenant reports whether plantID is a live plant of tenantID.
func (r *RBACRepository) PlantInTenant(ctx context.Context, tenantID, plantID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Plant{}).
		Where("id = ? AND tenant_id = ?", plantID, tenantID).
		Count(&count).Error
	return count > 0, err
}

func (r *RBACRepository) ListGrants(ctx context.Context, tenantID, roleKey string) ([]models.RolePermission, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return nil, err
	}
	var grants []models.RolePermission
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if roleKey != "" {
		q = q.Where("role_key = ?", roleKey)
	}
	if err := q.Order("role_key ASC").Order("permission_key ASC").Find(&grants).Error; err != nil {
		return nil, r.classify(err)
	}
	return grants, nil
}

// Grant is idempotent.
func (r *RBACRepository) Grant(ctx context.Context, tenantID, roleKey, permissionKey string) error {
	if err := r.SchemaReady(ctx); err != nil {
		return err
	}
	grant := models.RolePermission{TenantID: tenantID, RoleKey: roleKey, PermissionKey: permissionKey}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&grant).Error
	return r.classify(err)
}

// Revoke hard-deletes the grant so it can be granted again later.
func (r *RBACRepository) Revoke(ctx context.Context, tenantID, roleKey, permissionKey string) (bool, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Unscoped().
		Where("tenant_id = ? AND role_key = ? AND permission_key = ?", tenantID, roleKey, permissionKey).
		Delete(&models.RolePermission{})
	if res.Error != nil {
		return false, r.classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetPlantRole upserts the override; an empty role removes it.
func (r *RBACRepository) SetPlantRole(ctx context.Context, userID, plantID, role string) error {
	if err := r.SchemaReady(ctx); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if role == "" {
		err := db.Unscoped().Where("user_id = ? AND plant_id = ?", userID, plantID).Delete(&models.UserPlantRole{}).Error
		return r.classify(err)
	}
	row := models.UserPlantRole{UserID: userID, PlantID: plantID, Role: role}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "plant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&row).Error
	return r.classify(err)
}

// SeedDefaults writes the default grant matrix for tenantID and returns
// the number of grants created.
func (r *RBACRepository) SeedDefaults(ctx context.Context, tenantID string) (int, error) {
	if err := r.SchemaReady(ctx); err != nil {
		return 0, err
	}
	n, err := models.SeedTenantPermissions(r.db.WithContext(ctx), tenantID)
	return n, r.classify(err)
}
