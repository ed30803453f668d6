package sla

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cmms/internal/models"

	"github.com/stretchr/testify/assert"
)

type stubRules struct {
	rule *models.SlaRule
	err  error
}

func (s stubRules) ActiveRule(context.Context, string, models.SlaEntity, models.Priority) (*models.SlaRule, error) {
	return s.rule, s.err
}

func hoursPtr(v float64) *float64 { return &v }

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestWorkOrderDeadline_Defaults(t *testing.T) {
	e := NewEngine(nil, 0)
	cases := map[models.Priority]time.Duration{
		models.PriorityBaixa:   96 * time.Hour,
		models.PriorityMedia:   72 * time.Hour,
		models.PriorityAlta:    24 * time.Hour,
		models.PriorityCritica: 8 * time.Hour,
		"urgentissimo":         72 * time.Hour,
		"":                     72 * time.Hour,
	}
	for p, want := range cases {
		assert.Equal(t, base.Add(want), e.WorkOrderDeadline(context.Background(), "tenant", p, base), "priority %q", p)
	}
}

func TestWorkOrderDeadline_RuleOverrides(t *testing.T) {
	e := NewEngine(stubRules{rule: &models.SlaRule{ResolutionTimeHours: hoursPtr(10)}}, time.Second)
	got := e.WorkOrderDeadline(context.Background(), "tenant", models.PriorityAlta, base)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got)
}

func TestWorkOrderDeadline_RuleHoursAreTruncatedAndFloored(t *testing.T) {
	e := NewEngine(stubRules{rule: &models.SlaRule{ResolutionTimeHours: hoursPtr(0.2)}}, time.Second)
	assert.Equal(t, base.Add(time.Hour), e.WorkOrderDeadline(context.Background(), "tenant", models.PriorityAlta, base))

	e = NewEngine(stubRules{rule: &models.SlaRule{ResolutionTimeHours: hoursPtr(5.9)}}, time.Second)
	assert.Equal(t, base.Add(5*time.Hour), e.WorkOrderDeadline(context.Background(), "tenant", models.PriorityAlta, base))

	e = NewEngine(stubRules{rule: &models.SlaRule{ResolutionTimeHours: hoursPtr(math.NaN())}}, time.Second)
	assert.Equal(t, base.Add(24*time.Hour), e.WorkOrderDeadline(context.Background(), "tenant", models.PriorityAlta, base))
}

func TestWorkOrderDeadline_StoreErrorUsesDefault(t *testing.T) {
	e := NewEngine(stubRules{err: errors.New("relation does not exist")}, time.Second)
	assert.Equal(t, base.Add(8*time.Hour), e.WorkOrderDeadline(context.Background(), "tenant", models.PriorityCritica, base))
}

func TestTicketDeadlines(t *testing.T) {
	e := NewEngine(nil, 0)
	d := e.TicketDeadlines(context.Background(), "tenant", models.PriorityCritica, base)
	assert.Equal(t, base.Add(time.Hour), d.Response)
	assert.Equal(t, base.Add(8*time.Hour), d.Resolution)

	// Only the response is overridden; resolution keeps its default.
	e = NewEngine(stubRules{rule: &models.SlaRule{ResponseTimeHours: hoursPtr(2)}}, time.Second)
	d = e.TicketDeadlines(context.Background(), "tenant", models.PriorityMedia, base)
	assert.Equal(t, base.Add(2*time.Hour), d.Response)
	assert.Equal(t, base.Add(72*time.Hour), d.Resolution)
}
