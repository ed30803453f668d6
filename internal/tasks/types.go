package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TaskTypeSlaSweep   = "sla:sweep"
	TaskTypeAuditPurge = "audit:purge"
)

// Task Queues
const (
	QueueCritical = "critical" // SLA breach detection
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // Retention and cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// AuditPurgePayload asks for audit entries older than RetentionDays to be
// removed.
type AuditPurgePayload struct {
	RetentionDays int    `json:"retentionDays"`
	RequestedBy   string `json:"requestedBy,omitempty"`
}

func NewSlaSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSlaSweep, nil,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryMin),
		asynq.Timeout(TimeoutMedium),
	)
}

func NewAuditPurgeTask(p AuditPurgePayload) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal audit purge payload: %w", err)
	}
	return asynq.NewTask(TaskTypeAuditPurge, raw,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutLong),
	), nil
}
