package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"cmms/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Purger removes audit entries past retention.
type Purger interface {
	Purge(ctx context.Context, retentionDays int) (int64, error)
}

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	sweeper          *Sweeper
	purger           Purger
	defaultRetention int
	logger           *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(sweeper *Sweeper, purger Purger, defaultRetention int) *TaskHandler {
	return &TaskHandler{
		sweeper:          sweeper,
		purger:           purger,
		defaultRetention: defaultRetention,
		logger:           logger.New("task_handler"),
	}
}

func (h *TaskHandler) HandleSlaSweep(ctx context.Context, _ *asynq.Task) error {
	res, err := h.sweeper.Run(ctx)
	if err != nil {
		return h.logger.Error("SLA sweep failed", err)
	}
	h.logger.Info("SLA sweep scanned %d, alerted %d work orders and %d tickets, throttled %d",
		res.Scanned, res.WorkOrders, res.Tickets, res.Throttled)
	return nil
}

func (h *TaskHandler) HandleAuditPurge(ctx context.Context, t *asynq.Task) error {
	p := AuditPurgePayload{RetentionDays: h.defaultRetention}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode audit purge payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if p.RetentionDays <= 0 {
		p.RetentionDays = h.defaultRetention
	}
	n, err := h.purger.Purge(ctx, p.RetentionDays)
	if err != nil {
		return h.logger.Error("Audit purge failed", err)
	}
	h.logger.Success("Audit purge removed %d entries (retention %d days)", n, p.RetentionDays)
	return nil
}
