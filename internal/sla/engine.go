// Package sla computes service-level deadlines and the pause-aware clocks
// of work orders and tickets.
package sla

import (
	"context"
	"math"
	"time"

	"cmms/internal/models"
	console "cmms/internal/utils/logger"
)

var log = console.New("SLA")

type hours struct {
	response   int
	resolution int
}

var workOrderDefaults = map[models.Priority]int{
	models.PriorityBaixa:   96,
	models.PriorityMedia:   72,
	models.PriorityAlta:    24,
	models.PriorityCritica: 8,
}

var ticketDefaults = map[models.Priority]hours{
	models.PriorityBaixa:   {response: 24, resolution: 96},
	models.PriorityMedia:   {response: 12, resolution: 72},
	models.PriorityAlta:    {response: 4, resolution: 24},
	models.PriorityCritica: {response: 1, resolution: 8},
}

// RuleStore looks up the active override for (tenant, entity, priority).
// A nil rule with a nil error means none is configured.
type RuleStore interface {
	ActiveRule(ctx context.Context, tenantID string, entity models.SlaEntity, priority models.Priority) (*models.SlaRule, error)
}

// Deadlines are a ticket's response and resolution due times.
type Deadlines struct {
	Response   time.Time `json:"response"`
	Resolution time.Time `json:"resolution"`
}

type Engine struct {
	rules   RuleStore
	timeout time.Duration
}

func NewEngine(rules RuleStore, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{rules: rules, timeout: timeout}
}

func normalizePriority(p models.Priority) models.Priority {
	if _, ok := workOrderDefaults[p]; ok {
		return p
	}
	return models.PriorityMedia
}

// ruleHours converts a configured value to whole hours. ok is false when v
// is unset or not finite.
func ruleHours(v *float64) (int, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	h := int(math.Trunc(*v))
	if h < 1 {
		h = 1
	}
	return h, true
}

// lookup never fails: store errors are logged and reported as no rule.
func (e *Engine) lookup(ctx context.Context, tenantID string, entity models.SlaEntity, p models.Priority) *models.SlaRule {
	if e.rules == nil || tenantID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	rule, err := e.rules.ActiveRule(ctx, tenantID, entity, p)
	if err != nil {
		log.Warn("SLA rule lookup for tenant %s (%s/%s) failed, using defaults: %v", tenantID, entity, p, err)
		return nil
	}
	return rule
}

// WorkOrderDeadline returns base plus the resolution hours for priority.
func (e *Engine) WorkOrderDeadline(ctx context.Context, tenantID string, priority models.Priority, base time.Time) time.Time {
	p := normalizePriority(priority)
	h := workOrderDefaults[p]
	if rule := e.lookup(ctx, tenantID, models.SlaEntityWorkOrder, p); rule != nil {
		if v, ok := ruleHours(rule.ResolutionTimeHours); ok {
			h = v
		}
	}
	return base.Add(time.Duration(h) * time.Hour)
}

// TicketDeadlines returns the response and resolution deadlines for a
// ticket opened at base. Rule fields override the defaults independently.
func (e *Engine) TicketDeadlines(ctx context.Context, tenantID string, priority models.Priority, base time.Time) Deadlines {
	p := normalizePriority(priority)
	h := ticketDefaults[p]
	if rule := e.lookup(ctx, tenantID, models.SlaEntityTicket, p); rule != nil {
		if v, ok := ruleHours(rule.ResponseTimeHours); ok {
			h.response = v
		}
		if v, ok := ruleHours(rule.ResolutionTimeHours); ok {
			h.resolution = v
		}
	}
	return Deadlines{
		Response:   base.Add(time.Duration(h.response) * time.Hour),
		Resolution: base.Add(time.Duration(h.resolution) * time.Hour),
	}
}
