package models

import "time"

type WorkOrderStatus string

const (
	StatusAberta     WorkOrderStatus = "aberta"
	StatusEmAnalise  WorkOrderStatus = "em_analise"
	StatusEmExecucao WorkOrderStatus = "em_execucao"
	StatusEmPausa    WorkOrderStatus = "em_pausa"
	StatusConcluida  WorkOrderStatus = "concluida"
	StatusFechada    WorkOrderStatus = "fechada"
	StatusCancelada  WorkOrderStatus = "cancelada"
)

var WorkOrderStatuses = []WorkOrderStatus{
	StatusAberta, StatusEmAnalise, StatusEmExecucao, StatusEmPausa,
	StatusConcluida, StatusFechada, StatusCancelada,
}

func IsValidWorkOrderStatus(s string) bool {
	for _, v := range WorkOrderStatuses {
		if string(v) == s {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses with no live SLA clock.
func (s WorkOrderStatus) IsTerminal() bool {
	return s == StatusConcluida || s == StatusFechada || s == StatusCancelada
}

// WorkOrder is a maintenance job. SlaPauseStartedAt is set exactly while
// Status is em_pausa. A nil SlaExcludePause means pause time is excluded.
type WorkOrder struct {
	Base
	TenantID          string          `gorm:"type:uuid;not null;index" json:"tenantId"`
	PlantID           string          `gorm:"type:uuid;not null;index" json:"plantId"`
	Title             string          `gorm:"not null" json:"title"`
	Description       string          `json:"description"`
	Status            WorkOrderStatus `gorm:"not null;default:'aberta';index" json:"status"`
	Priority          Priority        `gorm:"not null;default:'media'" json:"priority"`
	CreatedBy         string          `gorm:"type:uuid" json:"createdBy"`
	SlaDeadline       *time.Time      `json:"slaDeadline"`
	SlaPausedMs       int64           `gorm:"not null;default:0" json:"slaPausedMs"`
	SlaPauseStartedAt *time.Time      `json:"slaPauseStartedAt"`
	SlaExcludePause   *bool           `json:"slaExcludePause"`
	SlaAlertedAt      *time.Time      `json:"slaAlertedAt,omitempty"`
	AnalysisStartedAt *time.Time      `json:"analysisStartedAt"`
	StartedAt         *time.Time      `json:"startedAt"`
	PausedAt          *time.Time      `json:"pausedAt"`
	CompletedAt       *time.Time      `json:"completedAt"`
	ClosedAt          *time.Time      `json:"closedAt"`
	CancelledAt       *time.Time      `json:"cancelledAt"`
	Attachments       []File          `gorm:"foreignKey:WorkOrderID" json:"attachments,omitempty"`
}

// ExcludesPause reports whether pause time extends the SLA deadline.
func (w *WorkOrder) ExcludesPause() bool {
	return w.SlaExcludePause == nil || *w.SlaExcludePause
}

type TicketStatus string

const (
	TicketAberto        TicketStatus = "aberto"
	TicketEmAtendimento TicketStatus = "em_atendimento"
	TicketResolvido     TicketStatus = "resolvido"
	TicketFechado       TicketStatus = "fechado"
)

type Ticket struct {
	Base
	TenantID              string       `gorm:"type:uuid;not null;index" json:"tenantId"`
	PlantID               *string      `gorm:"type:uuid;index" json:"plantId"`
	Subject               string       `gorm:"not null" json:"subject"`
	Description           string       `json:"description"`
	Priority              Priority     `gorm:"not null;default:'media'" json:"priority"`
	Status                TicketStatus `gorm:"not null;default:'aberto';index" json:"status"`
	CreatedBy             string       `gorm:"type:uuid" json:"createdBy"`
	SlaResponseDeadline   *time.Time   `json:"slaResponseDeadline"`
	SlaResolutionDeadline *time.Time   `json:"slaResolutionDeadline"`
	SlaAlertedAt          *time.Time   `json:"slaAlertedAt,omitempty"`
	RespondedAt           *time.Time   `json:"respondedAt"`
	ResolvedAt            *time.Time   `json:"resolvedAt"`
}

func (t *Ticket) IsOpen() bool {
	return t.Status == TicketAberto || t.Status == TicketEmAtendimento
}
