package models

import (
	"cmms/internal/events"

	"gorm.io/gorm"
)

// Tenant is an isolated customer organisation. Tenants are only ever soft
// deleted.
type Tenant struct {
	Base
	Slug            string `gorm:"uniqueIndex;not null" json:"slug" validate:"required,min=2,max=63"`
	Name            string `gorm:"not null" json:"name" validate:"required,min=2"`
	IsReadOnly      bool   `gorm:"not null;default:false" json:"isReadOnly"`
	IsActive        bool   `gorm:"not null" json:"isActive"`
	SlaExcludePause bool   `gorm:"not null" json:"slaExcludePause"`
}

func (t *Tenant) AfterCreate(tx *gorm.DB) error {
	events.Emit(events.TenantCreated, t)
	return nil
}

// User belongs to one tenant. Role is stored raw and normalised at read
// time.
type User struct {
	Base
	TenantID string  `gorm:"type:uuid;not null;index" json:"tenantId"`
	Tenant   *Tenant `json:"tenant,omitempty"`
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Password string  `gorm:"not null" json:"-"`
	Name     string  `json:"name"`
	Role     string  `gorm:"not null;default:''" json:"role"`
	IsActive bool    `gorm:"not null" json:"isActive"`
}

// Plant is a physical site. It scopes role overrides and workflows.
type Plant struct {
	Base
	TenantID string `gorm:"type:uuid;not null;index" json:"tenantId"`
	Name     string `gorm:"not null" json:"name" validate:"required,min=2"`
	Code     string `gorm:"index" json:"code"`
}

// UserPlantRole overrides a user's global role inside a single plant.
type UserPlantRole struct {
	Base
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_user_plant" json:"userId"`
	PlantID string `gorm:"type:uuid;not null;uniqueIndex:idx_user_plant" json:"plantId"`
	Role    string `gorm:"not null" json:"role"`
}

// RolePermission grants permission_key to role_key within one tenant.
type RolePermission struct {
	Base
	TenantID      string `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission" json:"tenantId"`
	RoleKey       string `gorm:"not null;uniqueIndex:idx_role_permission" json:"roleKey"`
	PermissionKey string `gorm:"not null;uniqueIndex:idx_role_permission" json:"permissionKey"`
}
