package tasks

import (
	"context"
	"time"

	"cmms/internal/events"
	"cmms/internal/metrics"
	"cmms/internal/models"
	"cmms/internal/sla"
	"cmms/internal/utils/logger"
)

type WorkOrderSweepStore interface {
	ListOpen(ctx context.Context, afterID string, limit int) ([]models.WorkOrder, error)
	MarkAlerted(ctx context.Context, id string, at time.Time) error
}

type TicketSweepStore interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error)
	MarkAlerted(ctx context.Context, id string, at time.Time) error
}

// AlertLimiter caps breach alerts per tenant.
type AlertLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned    int `json:"scanned"`
	WorkOrders int `json:"workOrders"`
	Tickets    int `json:"tickets"`
	Throttled  int `json:"throttled"`
}

// BreachAlert is the payload of the *.sla_breached events.
type BreachAlert struct {
	TenantID string    `json:"tenantId"`
	EntityID string    `json:"entityId"`
	Priority string    `json:"priority"`
	Deadline time.Time `json:"deadline"`
	At       time.Time `json:"at"`
}

// Sweeper finds overdue work orders and tickets and raises one alert per
// entity.
type Sweeper struct {
	workOrders WorkOrderSweepStore
	tickets    TicketSweepStore
	limiter    AlertLimiter
	bus        *events.EventBus
	batch      int
	logger     *logger.Logger
	now        func() time.Time
}

func NewSweeper(workOrders WorkOrderSweepStore, tickets TicketSweepStore, limiter AlertLimiter, bus *events.EventBus, batch int) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		workOrders: workOrders,
		tickets:    tickets,
		limiter:    limiter,
		bus:        bus,
		batch:      batch,
		logger:     logger.New("SLA-SWEEP"),
		now:        time.Now,
	}
}

// allow consults the limiter. Limiter failures let the alert through.
func (s *Sweeper) allow(ctx context.Context, tenantID string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(ctx, tenantID)
	if err != nil {
		s.logger.Warn("Alert limiter unavailable for tenant %s: %v", tenantID, err)
		return true
	}
	return ok
}

func (s *Sweeper) emit(event string, alert BreachAlert) {
	if s.bus != nil {
		s.bus.Emit(event, alert)
		return
	}
	events.Emit(event, alert)
}

func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now().UTC()

	afterID := ""
	for {
		rows, err := s.workOrders.ListOpen(ctx, afterID, s.batch)
		if err != nil {
			return res, err
		}
		for i := range rows {
			wo := &rows[i]
			res.Scanned++
			if !sla.ShouldAlert(wo, now) {
				continue
			}
			if !s.allow(ctx, wo.TenantID) {
				res.Throttled++
				continue
			}
			if err := s.workOrders.MarkAlerted(ctx, wo.ID, now); err != nil {
				return res, err
			}
			deadline, _ := sla.EffectiveDeadline(wo, now)
			metrics.SlaBreaches.WithLabelValues(string(models.SlaEntityWorkOrder)).Inc()
			s.emit(events.WorkOrderSlaBreached, BreachAlert{
				TenantID: wo.TenantID,
				EntityID: wo.ID,
				Priority: string(wo.Priority),
				Deadline: deadline,
				At:       now,
			})
			res.WorkOrders++
		}
		if len(rows) < s.batch {
			break
		}
		afterID = rows[len(rows)-1].ID
	}

	if s.tickets == nil {
		return res, nil
	}
	// Alerted tickets drop out of ListOverdue, throttled ones do not, so a
	// single batch is processed per run.
	tickets, err := s.tickets.ListOverdue(ctx, now, s.batch)
	if err != nil {
		return res, err
	}
	for i := range tickets {
		t := &tickets[i]
		res.Scanned++
		if !s.allow(ctx, t.TenantID) {
			res.Throttled++
			continue
		}
		if err := s.tickets.MarkAlerted(ctx, t.ID, now); err != nil {
			return res, err
		}
		deadline := now
		switch {
		case sla.TicketResponseOverdue(t, now):
			deadline = *t.SlaResponseDeadline
		case t.SlaResolutionDeadline != nil:
			deadline = *t.SlaResolutionDeadline
		}
		metrics.SlaBreaches.WithLabelValues(string(models.SlaEntityTicket)).Inc()
		s.emit(events.TicketSlaBreached, BreachAlert{
			TenantID: t.TenantID,
			EntityID: t.ID,
			Priority: string(t.Priority),
			Deadline: deadline,
			At:       now,
		})
		res.Tickets++
	}
	return res, nil
}
