package models

type SlaEntity string

const (
	SlaEntityWorkOrder SlaEntity = "work_order"
	SlaEntityTicket    SlaEntity = "ticket"
)

func IsValidSlaEntity(s string) bool {
	return s == string(SlaEntityWorkOrder) || s == string(SlaEntityTicket)
}

// SlaRule overrides the static SLA hours for one tenant, entity and
// priority. Nil hour fields fall back to defaults field by field.
type SlaRule struct {
	Base
	TenantID            string    `gorm:"type:uuid;not null;uniqueIndex:idx_sla_rule" json:"tenantId"`
	EntityType          SlaEntity `gorm:"not null;uniqueIndex:idx_sla_rule" json:"entityType"`
	Priority            Priority  `gorm:"not null;uniqueIndex:idx_sla_rule" json:"priority"`
	ResponseTimeHours   *float64  `json:"responseTimeHours"`
	ResolutionTimeHours *float64  `json:"resolutionTimeHours"`
	IsActive            bool      `gorm:"not null" json:"isActive"`
}
