package models

import "gorm.io/datatypes"

// TransitionRule allows moving a work order From -> To. AllowedRoles, when
// non-empty, restricts who may perform it. ApprovalRoles is stored and
// returned to clients but not enforced yet.
type TransitionRule struct {
	From          WorkOrderStatus `json:"from" validate:"required,wo_status"`
	To            WorkOrderStatus `json:"to" validate:"required,wo_status"`
	AllowedRoles  []string        `json:"allowed_roles,omitempty"`
	ApprovalRoles []string        `json:"approval_roles,omitempty"`
}

// WorkflowConfig is the ordered transition table of a workflow.
type WorkflowConfig struct {
	Transitions []TransitionRule `json:"transitions" validate:"dive"`
}

// WorkOrderWorkflow is scoped to a plant, or tenant-wide when PlantID is
// nil. At most one row per scope has IsDefault set.
type WorkOrderWorkflow struct {
	Base
	TenantID  string                             `gorm:"type:uuid;not null;index:idx_workflow_scope" json:"tenantId"`
	PlantID   *string                            `gorm:"type:uuid;index:idx_workflow_scope" json:"plantId"`
	Name      string                             `gorm:"not null" json:"name"`
	IsDefault bool                               `gorm:"not null;default:false" json:"isDefault"`
	Config    datatypes.JSONType[WorkflowConfig] `json:"config"`
}
