package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAuditImmutable = errors.New("audit log entries are immutable")

// AuditLog is an append-only record of a privileged mutation. Superadmin
// tooling writes to the same table with Superadmin set.
type AuditLog struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"index;not null" json:"createdAt"`
	TenantID   *string        `gorm:"type:uuid;index" json:"tenantId"`
	Superadmin bool           `gorm:"not null;default:false;index" json:"superadmin"`
	ActorID    string         `gorm:"type:uuid" json:"actorId"`
	ActorRole  string         `json:"actorRole"`
	Action     string         `gorm:"not null;index" json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Before     datatypes.JSON `json:"before,omitempty"`
	After      datatypes.JSON `json:"after,omitempty"`
	IPAddress  string         `json:"ipAddress"`
	RequestID  string         `json:"requestId"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}
