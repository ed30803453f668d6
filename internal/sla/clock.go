package sla

import (
	"time"

	"cmms/internal/models"
)

// TotalPaused is the accumulated pause plus the running pause, if any.
func TotalPaused(o *models.WorkOrder, now time.Time) time.Duration {
	total := time.Duration(o.SlaPausedMs) * time.Millisecond
	if o.SlaPauseStartedAt != nil && now.After(*o.SlaPauseStartedAt) {
		total += now.Sub(*o.SlaPauseStartedAt)
	}
	return total
}

// EffectiveDeadline shifts the stored deadline by the paused time when the
// order excludes pauses. ok is false when the order has no deadline.
func EffectiveDeadline(o *models.WorkOrder, now time.Time) (time.Time, bool) {
	if o.SlaDeadline == nil {
		return time.Time{}, false
	}
	if !o.ExcludesPause() {
		return *o.SlaDeadline, true
	}
	return o.SlaDeadline.Add(TotalPaused(o, now)), true
}

// IsOverdue holds from the effective deadline onwards.
func IsOverdue(o *models.WorkOrder, now time.Time) bool {
	deadline, ok := EffectiveDeadline(o, now)
	return ok && !now.Before(deadline)
}

// ShouldAlert reports whether a breach alert is due. Terminal orders and
// orders whose clock is frozen by a pause never alert.
func ShouldAlert(o *models.WorkOrder, now time.Time) bool {
	if o.Status.IsTerminal() {
		return false
	}
	if o.Status == models.StatusEmPausa && o.ExcludesPause() {
		return false
	}
	return IsOverdue(o, now)
}

// StatusAging is the time spent in the current status. ok is false for
// terminal statuses.
func StatusAging(o *models.WorkOrder, now time.Time) (time.Duration, bool) {
	var (
		anchor time.Time
		minus  time.Duration
	)
	switch o.Status {
	case models.StatusAberta:
		anchor = o.CreatedAt
	case models.StatusEmAnalise:
		anchor = firstSet(o.CreatedAt, o.AnalysisStartedAt)
	case models.StatusEmExecucao:
		anchor = firstSet(o.CreatedAt, o.StartedAt, o.AnalysisStartedAt)
		minus = time.Duration(o.SlaPausedMs) * time.Millisecond
	case models.StatusEmPausa:
		anchor = firstSet(o.CreatedAt, o.SlaPauseStartedAt, o.PausedAt, o.StartedAt, o.AnalysisStartedAt)
	default:
		return 0, false
	}
	aging := now.Sub(anchor) - minus
	if aging < 0 {
		aging = 0
	}
	return aging, true
}

// firstSet returns the first non-nil candidate, or fallback.
func firstSet(fallback time.Time, candidates ...*time.Time) time.Time {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return fallback
}

// TicketResponseOverdue reports an unanswered ticket past its response
// deadline.
func TicketResponseOverdue(t *models.Ticket, now time.Time) bool {
	return t.RespondedAt == nil && t.IsOpen() && t.SlaResponseDeadline != nil && !now.Before(*t.SlaResponseDeadline)
}

func TicketResolutionOverdue(t *models.Ticket, now time.Time) bool {
	return t.ResolvedAt == nil && t.IsOpen() && t.SlaResolutionDeadline != nil && !now.Before(*t.SlaResolutionDeadline)
}
