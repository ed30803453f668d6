package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"cmms/internal/events"
	"cmms/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

type fakeWorkOrders struct {
	rows    []models.WorkOrder
	alerted []string
}

func (f *fakeWorkOrders) ListOpen(_ context.Context, afterID string, limit int) ([]models.WorkOrder, error) {
	var out []models.WorkOrder
	for _, r := range f.rows {
		if r.ID > afterID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeWorkOrders) MarkAlerted(_ context.Context, id string, _ time.Time) error {
	f.alerted = append(f.alerted, id)
	return nil
}

type fakeTickets struct {
	rows    []models.Ticket
	alerted []string
	err     error
}

func (f *fakeTickets) ListOverdue(context.Context, time.Time, int) ([]models.Ticket, error) {
	return f.rows, f.err
}

func (f *fakeTickets) MarkAlerted(_ context.Context, id string, _ time.Time) error {
	f.alerted = append(f.alerted, id)
	return nil
}

type quotaLimiter struct {
	left map[string]int
	err  error
}

func (q *quotaLimiter) Allow(_ context.Context, id string) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	if q.left[id] <= 0 {
		return false, nil
	}
	q.left[id]--
	return true, nil
}

func workOrder(id, tenant string, status models.WorkOrderStatus, deadline *time.Time) models.WorkOrder {
	wo := models.WorkOrder{TenantID: tenant, Status: status, Priority: models.PriorityAlta, SlaDeadline: deadline}
	wo.ID = id
	return wo
}

func newTestSweeper(wo WorkOrderSweepStore, tk TicketSweepStore, l AlertLimiter, bus *events.EventBus, batch int) *Sweeper {
	s := NewSweeper(wo, tk, l, bus, batch)
	s.now = func() time.Time { return now }
	return s
}

func TestSweep_AlertsOverdueWorkOrders(t *testing.T) {
	wo := &fakeWorkOrders{rows: []models.WorkOrder{
		workOrder("a", "t1", models.StatusEmExecucao, ago(time.Hour)),
		workOrder("b", "t1", models.StatusEmExecucao, ago(-time.Hour)),
		workOrder("c", "t1", models.StatusEmPausa, ago(time.Hour)),
		workOrder("d", "t2", models.StatusAberta, ago(time.Minute)),
		workOrder("e", "t2", models.StatusConcluida, ago(time.Hour)),
	}}
	// The pause started two hours ago still pushes c's deadline out.
	wo.rows[2].SlaPauseStartedAt = ago(2 * time.Hour)

	bus := events.NewEventBus()
	var (
		mu  sync.Mutex
		got []BreachAlert
	)
	bus.On(events.WorkOrderSlaBreached, func(data interface{}) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, data.(BreachAlert))
	})

	// Batch of two forces paging.
	res, err := newTestSweeper(wo, nil, nil, bus, 2).Run(context.Background())
	require.NoError(t, err)
	bus.Wait()

	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, 2, res.WorkOrders)
	assert.Equal(t, []string{"a", "d"}, wo.alerted)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	sort.Slice(got, func(i, j int) bool { return got[i].EntityID < got[j].EntityID })
	assert.Equal(t, "t1", got[0].TenantID)
	assert.Equal(t, now.Add(-time.Hour), got[0].Deadline)
	assert.Equal(t, string(models.PriorityAlta), got[0].Priority)
}

func TestSweep_ThrottlesPerTenant(t *testing.T) {
	wo := &fakeWorkOrders{rows: []models.WorkOrder{
		workOrder("a", "t1", models.StatusEmExecucao, ago(time.Hour)),
		workOrder("b", "t1", models.StatusEmExecucao, ago(time.Hour)),
		workOrder("c", "t2", models.StatusEmExecucao, ago(time.Hour)),
	}}
	tk := &fakeTickets{rows: []models.Ticket{{TenantID: "t2", Status: models.TicketAberto, SlaResponseDeadline: ago(time.Minute)}}}
	tk.rows[0].ID = "k"
	limiter := &quotaLimiter{left: map[string]int{"t1": 1, "t2": 1}}

	res, err := newTestSweeper(wo, tk, limiter, events.NewEventBus(), 10).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.WorkOrders)
	assert.Equal(t, 0, res.Tickets)
	assert.Equal(t, 2, res.Throttled)
	assert.Equal(t, []string{"a", "c"}, wo.alerted)
	assert.Empty(t, tk.alerted)
}

func TestSweep_LimiterFailureLetsAlertsThrough(t *testing.T) {
	tk := &fakeTickets{rows: []models.Ticket{{TenantID: "t1", Status: models.TicketEmAtendimento, SlaResolutionDeadline: ago(time.Hour)}}}
	tk.rows[0].ID = "k"

	res, err := newTestSweeper(&fakeWorkOrders{}, tk, &quotaLimiter{err: errors.New("redis down")}, events.NewEventBus(), 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tickets)
	assert.Equal(t, []string{"k"}, tk.alerted)
}

func TestSweep_TicketStoreError(t *testing.T) {
	tk := &fakeTickets{err: errors.New("boom")}
	_, err := newTestSweeper(&fakeWorkOrders{}, tk, nil, events.NewEventBus(), 10).Run(context.Background())
	assert.Error(t, err)
}
