package workorders

import (
	"context"
	"strings"
	"time"

	"cmms/internal/apperr"
	"cmms/internal/audit"
	"cmms/internal/events"
	"cmms/internal/models"
	"cmms/internal/sla"
)

type CreateTicketInput struct {
	PlantID     *string         `json:"plantId" validate:"omitempty,uuid"`
	Subject     string          `json:"subject" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Priority    models.Priority `json:"priority" validate:"omitempty,priority"`
}

// ticketFlow lists the statuses each ticket status may move to.
var ticketFlow = map[models.TicketStatus][]models.TicketStatus{
	models.TicketAberto:        {models.TicketEmAtendimento, models.TicketResolvido, models.TicketFechado},
	models.TicketEmAtendimento: {models.TicketResolvido, models.TicketFechado},
	models.TicketResolvido:     {models.TicketEmAtendimento, models.TicketFechado},
}

func ticketMoveAllowed(from, to models.TicketStatus) bool {
	for _, s := range ticketFlow[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TicketView is a ticket together with its live SLA flags.
type TicketView struct {
	*models.Ticket
	ResponseOverdue   bool `json:"responseOverdue"`
	ResolutionOverdue bool `json:"resolutionOverdue"`
}

func ticketView(t *models.Ticket, now time.Time) TicketView {
	return TicketView{
		Ticket:            t,
		ResponseOverdue:   sla.TicketResponseOverdue(t, now),
		ResolutionOverdue: sla.TicketResolutionOverdue(t, now),
	}
}

// CreateTicket opens a ticket with response and resolution deadlines.
func (s *Service) CreateTicket(ctx context.Context, actor Actor, tenantID string, in CreateTicketInput) (*models.Ticket, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, apperr.InvalidInput("Subject is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedia
	}

	now := s.now().UTC()
	deadlines := s.SLA.TicketDeadlines(ctx, tenantID, priority, now)
	t := &models.Ticket{
		TenantID:              tenantID,
		PlantID:               in.PlantID,
		Subject:               strings.TrimSpace(in.Subject),
		Description:           in.Description,
		Priority:              priority,
		Status:                models.TicketAberto,
		CreatedBy:             actor.UserID,
		SlaResponseDeadline:   &deadlines.Response,
		SlaResolutionDeadline: &deadlines.Resolution,
	}
	t.CreatedAt = now

	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.Tickets.Create(tctx, t); err != nil {
		return nil, apperr.Internal(err)
	}

	s.Audit.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     "ticket.create",
		EntityType: "ticket",
		EntityID:   t.ID,
		After:      t,
		IPAddress:  actor.IPAddress,
		RequestID:  actor.RequestID,
	})
	s.emit(events.TicketCreated, t)
	return t, nil
}

func (s *Service) GetTicket(ctx context.Context, tenantID, id string) (TicketView, error) {
	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	t, err := s.Tickets.Get(tctx, tenantID, id)
	if err != nil {
		return TicketView{}, storeErr(err, "Ticket")
	}
	return ticketView(t, s.now().UTC()), nil
}

// UpdateTicketStatus moves a ticket forward, stamping the first response
// and the resolution time.
func (s *Service) UpdateTicketStatus(ctx context.Context, actor Actor, tenantID, id string, to models.TicketStatus) (TicketView, error) {
	tctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	t, err := s.Tickets.Get(tctx, tenantID, id)
	if err != nil {
		return TicketView{}, storeErr(err, "Ticket")
	}
	from := t.Status
	if !ticketMoveAllowed(from, to) {
		return TicketView{}, apperr.InvalidTransition(string(from), string(to))
	}

	now := s.now().UTC()
	if t.RespondedAt == nil {
		t.RespondedAt = &now
	}
	switch to {
	case models.TicketResolvido, models.TicketFechado:
		if t.ResolvedAt == nil {
			resolved := now
			t.ResolvedAt = &resolved
		}
	case models.TicketEmAtendimento:
		t.ResolvedAt = nil
	}
	t.Status = to

	saved, err := s.Tickets.SaveStatus(tctx, t, from)
	if err != nil {
		return TicketView{}, apperr.Internal(err)
	}
	if !saved {
		return TicketView{}, apperr.InvalidTransition(string(from), string(to))
	}
	s.Audit.Record(ctx, audit.Entry{
		TenantID:   tenantID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     "ticket.status",
		EntityType: "ticket",
		EntityID:   t.ID,
		Before:     map[string]any{"status": from},
		After:      map[string]any{"status": to},
		IPAddress:  actor.IPAddress,
		RequestID:  actor.RequestID,
	})
	return ticketView(t, now), nil
}
