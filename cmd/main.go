package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmms/docs/swagger"
	"cmms/internal/api"
	"cmms/internal/config"
	"cmms/internal/db"
	"cmms/internal/events"
	"cmms/internal/handlers"
	"cmms/internal/models"
	"cmms/internal/repository"
	"cmms/internal/services"
	"cmms/internal/tasks"
	"cmms/internal/tasks/rate"
	"cmms/internal/utils/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// @title CMMS API
// @version 1.0
// @description Multi-tenant maintenance management API
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger := logger.New("cmms")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	// Connect to database
	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			logger.Warn("Failed to close database connection: %v", err)
		}
	}()

	bus := events.NewEventBus()
	bus.On(events.WorkOrderSlaBreached, func(data interface{}) {
		if alert, ok := data.(tasks.BreachAlert); ok {
			logger.Warn("Work order %s of tenant %s breached its SLA (deadline %s)", alert.EntityID, alert.TenantID, alert.Deadline.Format(time.RFC3339))
		}
	})
	bus.On(events.TicketSlaBreached, func(data interface{}) {
		if alert, ok := data.(tasks.BreachAlert); ok {
			logger.Warn("Ticket %s of tenant %s breached its SLA", alert.EntityID, alert.TenantID)
		}
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	deps := api.Deps{Events: bus}
	if cfg.Tenant.CacheBackend == "redis" {
		deps.Redis = redisClient
	}

	// Initialize S3 service
	if cfg.Storage.S3.Enabled() {
		s3Ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		s3Service, err := services.NewS3Service(
			s3Ctx,
			cfg.Storage.S3.BucketName,
			cfg.Storage.S3.Endpoint,
			cfg.Storage.S3.Region,
			cfg.Storage.S3.AccessKey,
			cfg.Storage.S3.SecretKey,
		)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}

		// Attachments get presigned URLs when loaded.
		models.RegisterAttachmentSigner(s3Service, cfg.Storage.S3.URLTTL)
		handlers.RegisterAttachmentStore(s3Service)
	} else {
		logger.Warn("S3 storage not configured, attachments are disabled")
	}

	var (
		taskClient    *tasks.TaskClient
		taskServer    *tasks.Server
		taskScheduler *tasks.Scheduler
	)
	if cfg.Worker.Enabled {
		taskClient = tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
		defer taskClient.Close()
		deps.Queue = taskClient
	}

	// Initialize API server
	apiServer, err := api.NewServer(cfg, conn, deps)
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}

	if cfg.Worker.Enabled {
		// A non-positive quota turns alert throttling off.
		var limiter tasks.AlertLimiter
		if cfg.SLA.AlertsPerTenant > 0 {
			limiter = rate.NewLimiter(redisClient, "sla_alerts", rate.Limit{
				Window: cfg.SLA.AlertWindow,
				Max:    cfg.SLA.AlertsPerTenant,
			})
		}
		sweeper := tasks.NewSweeper(
			repository.NewWorkOrderRepository(conn),
			repository.NewTicketRepository(conn),
			limiter,
			bus,
			cfg.SLA.SweepBatchSize,
		)
		taskHandler := tasks.NewTaskHandler(sweeper, apiServer.Recorder(), cfg.Audit.RetentionDays)

		taskServer = tasks.NewServer(
			cfg.Redis.Addr,
			cfg.Redis.Username,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Worker.Concurrency,
			taskHandler,
			logger,
		)
		if err := taskServer.Start(); err != nil {
			_ = logger.Error("Task server error", err)
		}

		taskScheduler = tasks.NewScheduler(
			cfg.Redis.Addr,
			cfg.Redis.Username,
			cfg.Redis.Password,
			cfg.Redis.DB,
			tasks.Schedule{SlaSweep: cfg.SLA.SweepCron, AuditPurge: cfg.Audit.PurgeCron},
			logger,
		)
		go func() {
			if err := taskScheduler.Start(); err != nil {
				_ = logger.Error("Task scheduler error", err)
			}
		}()
	}

	// Swagger documentation
	swagger.SwaggerInfo.Title = "CMMS API Documentation"
	swagger.SwaggerInfo.Description = "Multi-tenant maintenance management API"
	swagger.SwaggerInfo.Version = "1.0"
	swagger.SwaggerInfo.BasePath = "/api/v1"

	go func() {
		logger.Success("API server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil {
			logger.Info("API server stopped: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if taskScheduler != nil {
		taskScheduler.Stop()
	}
	if taskServer != nil {
		taskServer.Shutdown()
	}

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		_ = logger.Error("Failed to shutdown API server", err)
	}
	bus.Wait()

	logger.Info("Servers shutdown gracefully")
}

func setupLogging(cfg *config.Config) {
	logger.SetLevel(cfg.Log.Level)
	if err := logger.InitZap(logger.ZapConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		ServiceName: cfg.Server.ServiceName,
	}); err != nil {
		log.Fatalf("Failed to initialise structured logger: %v", err)
	}
}
