package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// Priority is shared by work orders, tickets and SLA rules.
type Priority string

const (
	PriorityBaixa   Priority = "baixa"
	PriorityMedia   Priority = "media"
	PriorityAlta    Priority = "alta"
	PriorityCritica Priority = "critica"
)

var Priorities = []Priority{PriorityBaixa, PriorityMedia, PriorityAlta, PriorityCritica}

func IsValidPriority(p string) bool {
	for _, v := range Priorities {
		if string(v) == p {
			return true
		}
	}
	return false
}

// Well-known role keys. Roles are free-form strings, these are the ones the
// core treats specially or seeds grants for.
const (
	RoleSuperadmin   = "superadmin"
	RoleAdminEmpresa = "admin_empresa"
	RoleGestor       = "gestor"
	RoleSupervisor   = "supervisor"
	RoleTecnico      = "tecnico"
	RoleSolicitante  = "solicitante"
)

// NormalizeRole trims and lowercases a raw role string. Empty means no role.
func NormalizeRole(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
