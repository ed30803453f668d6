package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cmms/internal/config"
	"cmms/internal/models"
	console "cmms/internal/utils/logger"
)

var log = console.New("DB")

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.Database.Driver {
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
			cfg.Database.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Database.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Connect opens the configured database, retrying a few times, and runs
// the migrations.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.Log.Level == "debug" {
		logLevel = logger.Info
	}

	log.Info("Connecting to %s database...", cfg.Database.Driver)
	maxRetries := 5
	if cfg.Database.Driver == "sqlite" {
		maxRetries = 1
	}
	var conn *gorm.DB
	for i := 0; i < maxRetries; i++ {
		conn, err = gorm.Open(dial, &gorm.Config{
			Logger:                                   logger.Default.LogMode(logLevel),
			DisableForeignKeyConstraintWhenMigrating: true,
			AllowGlobalUpdate:                        false,
		})
		if err == nil {
			break
		}
		log.Warn("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(time.Second * 5)
		}
	}
	if err != nil {
		return nil, log.Error("Failed to connect to database after %d attempts", err, maxRetries)
	}
	log.Success("Connected to database")

	// Configure connection pool
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, log.Error("Failed to get underlying *sql.DB instance", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// Every sqlite connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(time.Minute * 30)
	}

	if err := Migrate(conn, cfg); err != nil {
		return nil, log.Error("Failed to run migrations", err)
	}
	log.Success("Migrations completed")
	return conn, nil
}

// Migrate creates or updates every table. The RBAC tables are left to an
// external migration unless RBAC.AutoMigrate is set.
func Migrate(conn *gorm.DB, cfg *config.Config) error {
	log.Info("Running migrations...")
	tables := []interface{}{
		&models.Tenant{},
		&models.User{},
		&models.Plant{},
		&models.WorkOrder{},
		&models.File{},
		&models.Ticket{},
		&models.SlaRule{},
		&models.WorkOrderWorkflow{},
		&models.AuditLog{},
	}
	if cfg.RBAC.AutoMigrate {
		tables = append(tables, &models.RolePermission{}, &models.UserPlantRole{})
	} else {
		log.Info("Skipping RBAC tables; expecting an external migration")
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(tables...)
	})
}

func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
