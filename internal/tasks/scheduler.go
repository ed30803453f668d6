package tasks

import (
	"fmt"

	"cmms/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Schedule lists the cron specs of the periodic tasks. Empty specs are
// not registered.
type Schedule struct {
	SlaSweep   string
	AuditPurge string
}

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler *asynq.Scheduler
	schedule  Schedule
	logger    *logger.Logger
}

// NewScheduler creates a new task scheduler
func NewScheduler(redisAddr, username, password string, db int, schedule Schedule, logger *logger.Logger) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt(redisAddr, username, password, db),
		&asynq.SchedulerOpts{},
	)

	return &Scheduler{
		scheduler: scheduler,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start registers the periodic tasks and runs the scheduler until Stop.
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

// registerTasks registers all periodic tasks
func (s *Scheduler) registerTasks() error {
	if s.schedule.SlaSweep != "" {
		if err := s.register(s.schedule.SlaSweep, NewSlaSweepTask()); err != nil {
			return err
		}
	}
	if s.schedule.AuditPurge != "" {
		task, err := NewAuditPurgeTask(AuditPurgePayload{})
		if err != nil {
			return err
		}
		if err := s.register(s.schedule.AuditPurge, task); err != nil {
			return err
		}
	}
	s.logger.Info("registered all periodic tasks")
	return nil
}

func (s *Scheduler) register(spec string, task *asynq.Task) error {
	if err := ValidateCron(spec); err != nil {
		return err
	}
	entryID, err := s.scheduler.Register(spec, task)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", task.Type(), err)
	}
	s.logger.Info("registered periodic task %s %s %s", task.Type(), spec, entryID)
	return nil
}
