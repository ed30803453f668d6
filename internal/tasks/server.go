package tasks

import (
	"fmt"

	"cmms/internal/utils/logger"

	"github.com/hibiken/asynq"
)

var queues = map[string]int{
	QueueCritical: 6, // High priority
	QueueDefault:  3, // Medium priority
	QueueLow:      1, // Low priority
}

// Server handles task processing
type Server struct {
	server      *asynq.Server
	handler     *TaskHandler
	logger      *logger.Logger
	concurrency int
}

// NewServer creates a new task processing server
func NewServer(redisAddr, username, password string, db, concurrency int, handler *TaskHandler, logger *logger.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	server := asynq.NewServer(
		redisOpt(redisAddr, username, password, db),
		asynq.Config{
			Concurrency: concurrency,
			Queues:      queues,
			// Enable strict priority, meaning higher priority queues are processed first
			StrictPriority: true,
		},
	)

	return &Server{
		server:      server,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Mux routes task types to handler methods.
func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSlaSweep, s.handler.HandleSlaSweep)
	mux.HandleFunc(TaskTypeAuditPurge, s.handler.HandleAuditPurge)
	return mux
}

// Start starts the task processing server
func (s *Server) Start() error {
	s.logger.Info("starting task processing server concurrency %d queues %v", s.concurrency, queues)

	if err := s.server.Start(s.Mux()); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the task processing server
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}
