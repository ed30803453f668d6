// Package workorders applies the SLA engine and the workflow state
// machine to work orders and tickets.
package workorders

import (
	"context"
	"errors"
	"strings"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/audit"
	"cmms/internal/events"
	"cmms/internal/models"
	"cmms/internal/repository"
	"cmms/internal/sla"
	"cmms/internal/workflow"
)

// Actor is the caller on whose behalf a mutation runs. Role is the
// effective role for the target plant.
type Actor struct {
	UserID    string
	Role      string
	IPAddress string
	RequestID string
}

type WorkOrderStore interface {
	Create(ctx context.Context, wo *models.WorkOrder) error
	Get(ctx context.Context, tenantID, plantID, id string) (*models.WorkOrder, error)
	SaveTransition(ctx context.Context, wo *models.WorkOrder, from models.WorkOrderStatus) (bool, error)
	AddAttachment(ctx context.Context, f *models.File) error
}

type TicketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	Get(ctx context.Context, tenantID, id string) (*models.Ticket, error)
	SaveStatus(ctx context.Context, t *models.Ticket, from models.TicketStatus) (bool, error)
}

type TenantStore interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
}

type Workflows interface {
	ActiveConfig(ctx context.Context, tenantID, plantID string) (workflow.Config, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Deps groups the collaborators of Service.
type Deps struct {
	WorkOrders WorkOrderStore
	Tickets    TicketStore
	Tenants    TenantStore
	Workflows  Workflows
	SLA        *sla.Engine
	Audit      Auditor
	Events     *events.EventBus
	Timeout    time.Duration
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	return &Service{Deps: deps, now: time.Now}
}

func (s *Service) emit(event string, data any) {
	if s.Events != nil {
		s.Events.Emit(event, data)
		return
	}
	events.Emit(event, data)
}

func storeErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Internal(err)
}

// CreateWorkOrderInput is the client-supplied part of a new work order.
type CreateWorkOrderInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Priority    models.Priority `json:"priority" validate:"omitempty,priority"`
}

// CreateWorkOrder opens a work order on plantID with its SLA deadline
// computed from the creation time.
func (s *Service) CreateWorkOrder(ctx context.Context, actor Actor, tenantID, plantID string, in CreateWorkOrderInput) (*models.WorkOrder, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.InvalidInput("Title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedia
	}

	now := s.now().UTC()
	deadline := s.SLA.WorkOrderDeadline(ctx, tenantID, priority, now)
	wo := &models.WorkOrder{
		TenantID:        tenantID,
		PlantID:         plantID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Status:          models.StatusAberta,
		Priority:        priority,
		CreatedBy:       actor.UserID,
		SlaDeadline:     &deadline,
		SlaExcludePause: s.tenantExcludesPause(ctx, tenantID),
	}
	wo.CreatedAt = now

	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.WorkOrders.Create(tctx, wo); err != nil {
		return nil, apperr.Internal(err)
	}

	s.Audit.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     "work_order.create",
		EntityType: "work_order",
		EntityID:   wo.ID,
		After:      wo,
		IPAddress:  actor.IPAddress,
		RequestID:  actor.RequestID,
	})
	s.emit(events.WorkOrderCreated, wo)
	return wo, nil
}

// tenantExcludesPause snapshots the tenant's pause policy onto new orders.
// Lookup failures keep the default, which excludes pauses.
func (s *Service) tenantExcludesPause(ctx context.Context, tenantID string) *bool {
	if s.Tenants == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	t, err := s.Tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil
	}
	exclude := t.SlaExcludePause
	return &exclude
}

// View is a work order together with its live SLA figures.
type View struct {
	*models.WorkOrder
	EffectiveDeadline  *time.Time               `json:"effectiveDeadline"`
	Overdue            bool                     `json:"overdue"`
	PausedMs           int64                    `json:"pausedMs"`
	StatusAgingMs      *int64                   `json:"statusAgingMs"`
	AllowedTransitions []models.WorkOrderStatus `json:"allowedTransitions"`
}

func (s *Service) view(wo *models.WorkOrder, cfg *workflow.Config, now time.Time) View {
	v := View{
		WorkOrder: wo,
		Overdue:   sla.IsOverdue(wo, now),
		PausedMs:  sla.TotalPaused(wo, now).Milliseconds(),
	}
	if d, ok := sla.EffectiveDeadline(wo, now); ok {
		v.EffectiveDeadline = &d
	}
	if aging, ok := sla.StatusAging(wo, now); ok {
		ms := aging.Milliseconds()
		v.StatusAgingMs = &ms
	}
	if cfg != nil {
		v.AllowedTransitions = workflow.Targets(*cfg, wo.Status)
	}
	return v
}

func (s *Service) GetWorkOrder(ctx context.Context, tenantID, plantID, id string) (View, error) {
	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	wo, err := s.WorkOrders.Get(tctx, tenantID, plantID, id)
	if err != nil {
		return View{}, storeErr(err, "Work order")
	}
	cfg, err := s.Workflows.ActiveConfig(ctx, tenantID, plantID)
	if err != nil {
		return View{}, err
	}
	return s.view(wo, &cfg, s.now().UTC()), nil
}

// Transition moves a work order to status to under the plant's active
// workflow, maintaining lifecycle stamps and pause accounting.
func (s *Service) Transition(ctx context.Context, actor Actor, tenantID, plantID, id string, to models.WorkOrderStatus) (View, error) {
	if !models.IsValidWorkOrderStatus(string(to)) {
		return View{}, apperr.InvalidInput("Unknown status " + string(to))
	}

	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	wo, err := s.WorkOrders.Get(tctx, tenantID, plantID, id)
	if err != nil {
		return View{}, storeErr(err, "Work order")
	}

	cfg, err := s.Workflows.ActiveConfig(ctx, tenantID, plantID)
	if err != nil {
		return View{}, err
	}
	from := wo.Status
	if err := workflow.Validate(cfg, from, to, actor.Role); err != nil {
		return View{}, err
	}

	now := s.now().UTC()
	before := *wo
	applyTransition(wo, to, now)
	saved, err := s.WorkOrders.SaveTransition(tctx, wo, from)
	if err != nil {
		return View{}, apperr.Internal(err)
	}
	if !saved {
		// Another request moved the order after it was read.
		return View{}, apperr.InvalidTransition(string(from), string(to))
	}

	s.Audit.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     "work_order.transition",
		EntityType: "work_order",
		EntityID:   wo.ID,
		Before:     map[string]any{"status": before.Status, "slaPausedMs": before.SlaPausedMs},
		After:      map[string]any{"status": wo.Status, "slaPausedMs": wo.SlaPausedMs},
		IPAddress:  actor.IPAddress,
		RequestID:  actor.RequestID,
	})
	s.emit(events.WorkOrderTransitioned, TransitionEvent{
		TenantID:    tenantID,
		WorkOrderID: wo.ID,
		From:        from,
		To:          to,
		ActorID:     actor.UserID,
		At:          now,
	})
	return s.view(wo, &cfg, now), nil
}

// TransitionEvent is the payload of events.WorkOrderTransitioned.
type TransitionEvent struct {
	TenantID    string                 `json:"tenantId"`
	WorkOrderID string                 `json:"workOrderId"`
	From        models.WorkOrderStatus `json:"from"`
	To          models.WorkOrderStatus `json:"to"`
	ActorID     string                 `json:"actorId"`
	At          time.Time              `json:"at"`
}

// applyTransition mutates wo for the move to status to at now. Leaving
// em_pausa folds the running pause into SlaPausedMs.
func applyTransition(wo *models.WorkOrder, to models.WorkOrderStatus, now time.Time) {
	from := wo.Status
	if from == models.StatusEmPausa {
		if wo.SlaPauseStartedAt != nil && now.After(*wo.SlaPauseStartedAt) {
			wo.SlaPausedMs += now.Sub(*wo.SlaPauseStartedAt).Milliseconds()
		}
		wo.SlaPauseStartedAt = nil
	}

	// A reopened order starts a new cycle with no stamps from the last one.
	if from.IsTerminal() && !to.IsTerminal() {
		wo.AnalysisStartedAt = nil
		wo.StartedAt = nil
		wo.PausedAt = nil
		wo.CompletedAt = nil
		wo.ClosedAt = nil
		wo.CancelledAt = nil
		wo.SlaAlertedAt = nil
	}

	at := now
	switch to {
	case models.StatusEmAnalise:
		wo.AnalysisStartedAt = &at
	case models.StatusEmExecucao:
		if wo.StartedAt == nil {
			wo.StartedAt = &at
		}
	case models.StatusEmPausa:
		wo.SlaPauseStartedAt = &at
		wo.PausedAt = &at
	case models.StatusConcluida:
		wo.CompletedAt = &at
	case models.StatusFechada:
		wo.ClosedAt = &at
	case models.StatusCancelada:
		wo.CancelledAt = &at
	}

	wo.Status = to
}

// AddAttachment records an uploaded file against a work order.
func (s *Service) AddAttachment(ctx context.Context, actor Actor, tenantID, plantID, workOrderID string, f *models.File) error {
	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if _, err := s.WorkOrders.Get(tctx, tenantID, plantID, workOrderID); err != nil {
		return storeErr(err, "Work order")
	}
	f.TenantID = tenantID
	f.WorkOrderID = workOrderID
	f.UploadedBy = actor.UserID
	if err := s.WorkOrders.AddAttachment(tctx, f); err != nil {
		return apperr.Internal(err)
	}
	s.Audit.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     "work_order.attach",
		EntityType: "file",
		EntityID:   f.ID,
		After:      map[string]any{"workOrderId": workOrderID, "name": f.Name, "size": f.Size},
		IPAddress:  actor.IPAddress,
		RequestID:  actor.RequestID,
	})
	return nil
}
