package tasks

import (
	"context"
	"fmt"

	"cmms/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// TaskClient enqueues background work
type TaskClient struct {
	client *asynq.Client
	logger *logger.Logger
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	return &TaskClient{
		client: asynq.NewClient(redisOpt(redisAddr, username, password, db)),
		logger: logger.New("TASKS"),
	}
}

// EnqueueAuditPurge schedules an immediate audit retention purge.
func (c *TaskClient) EnqueueAuditPurge(ctx context.Context, p AuditPurgePayload) (*asynq.TaskInfo, error) {
	task, err := NewAuditPurgeTask(p)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TaskTypeAuditPurge, err)
	}
	c.logger.Info("Enqueued %s (%s) on %s", info.Type, info.ID, info.Queue)
	return info, nil
}

// EnqueueSlaSweep runs the SLA sweep now instead of waiting for the cron.
func (c *TaskClient) EnqueueSlaSweep(ctx context.Context) (*asynq.TaskInfo, error) {
	info, err := c.client.EnqueueContext(ctx, NewSlaSweepTask())
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TaskTypeSlaSweep, err)
	}
	return info, nil
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}
