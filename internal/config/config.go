package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Log      LogConfig
	Tenant   TenantConfig
	Store    StoreConfig
	RBAC     RBACConfig
	SLA      SLAConfig
	Audit    AuditConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	PublicURL   string
	RateLimit   float64
	BodyLimit   string
	Timeout     time.Duration
	ServiceName string

	// TrustedProxies are the CIDRs allowed to set X-Forwarded-For. Empty
	// means the socket peer is the client.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver   string // postgres, sqlite
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file path
}

type JWTConfig struct {
	Secret        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningIssuer string
}

type StorageConfig struct {
	Provider string // local, s3, r2
	S3       S3Config
}

type S3Config struct {
	BucketName string        `env:"S3_BUCKET_NAME" required:"true"`
	Endpoint   string        `env:"S3_ENDPOINT"`
	Region     string        `env:"S3_REGION" required:"true"`
	AccessKey  string        `env:"S3_ACCESS_KEY" required:"true"`
	SecretKey  string        `env:"S3_SECRET_KEY" required:"true"`
	URLTTL     time.Duration `env:"S3_URL_TTL"`
}

// Enabled reports whether attachment storage has credentials configured.
func (s S3Config) Enabled() bool {
	return s.BucketName != "" && s.AccessKey != "" && s.SecretKey != ""
}

type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

type LogConfig struct {
	Level       string
	Environment string
}

// TenantConfig drives implicit tenant resolution.
type TenantConfig struct {
	DefaultSlug  string
	FallbackID   string
	FallbackSlug string
	CacheTTL     time.Duration
	CacheBackend string // memory, redis
	BaseDomain   string // enables subdomain slugs, e.g. "cmms.example.com"
}

type StoreConfig struct {
	Timeout time.Duration
}

type RBACConfig struct {
	// AutoMigrate controls whether role_permissions and user_plant_roles are
	// created by AutoMigrate or left to an external migration.
	AutoMigrate bool
}

type SLAConfig struct {
	SweepCron        string
	AlertsPerTenant  int
	AlertWindow      time.Duration
	SweepBatchSize   int
	DefaultExclPause bool
}

type AuditConfig struct {
	RetentionDays int
	PurgeCron     string
}

type AdminConfig struct {
	PanelEnabled       bool
	SuperadminEmail    string
	SuperadminPassword string
	SuperadminName     string
	SuperadminTenant   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			PublicURL:      getEnv("PUBLIC_URL", "http://localhost:8080"),
			RateLimit:      float64(getEnvAsInt("SERVER_RATE_LIMIT", 20)),
			BodyLimit:      getEnv("SERVER_BODY_LIMIT", "10M"),
			Timeout:        getEnvAsDuration("SERVER_TIMEOUT", 30*time.Second),
			ServiceName:    getEnv("SERVICE_NAME", "cmms-api"),
			TrustedProxies: getEnvAsList("SERVER_TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "cmms"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			Path:     getEnv("SQLITE_PATH", "cmms.db"),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "your-secret-key"),
			AccessTTL:     getEnvAsDuration("JWT_ACCESS_TTL", 24*time.Hour),
			RefreshTTL:    getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			SigningIssuer: getEnv("JWT_ISSUER", "cmms"),
		},
		Storage: StorageConfig{
			Provider: getEnv("STORAGE_PROVIDER", "s3"),
			S3: S3Config{
				BucketName: getEnv("S3_BUCKET_NAME", ""),
				Endpoint:   getEnv("S3_ENDPOINT", ""),
				Region:     getEnv("S3_REGION", ""),
				AccessKey:  getEnv("S3_ACCESS_KEY", ""),
				SecretKey:  getEnv("S3_SECRET_KEY", ""),
				URLTTL:     getEnvAsDuration("S3_URL_TTL", time.Hour),
			},
		},
		Worker: WorkerConfig{
			Enabled:     getEnvAsBool("WORKER_ENABLED", true),
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
		},
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Tenant: TenantConfig{
			DefaultSlug:  getEnv("TENANT_DEFAULT_SLUG", ""),
			FallbackID:   getEnv("TENANT_FALLBACK_ID", "00000000-0000-0000-0000-000000000001"),
			FallbackSlug: getEnv("TENANT_FALLBACK_SLUG", "default"),
			CacheTTL:     getEnvAsDuration("TENANT_CACHE_TTL", 60*time.Second),
			CacheBackend: getEnv("TENANT_CACHE_BACKEND", "memory"),
			BaseDomain:   getEnv("TENANT_BASE_DOMAIN", ""),
		},
		Store: StoreConfig{
			Timeout: getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
		},
		RBAC: RBACConfig{
			AutoMigrate: getEnvAsBool("RBAC_AUTO_MIGRATE", true),
		},
		SLA: SLAConfig{
			SweepCron:        getEnv("SLA_SWEEP_CRON", "*/5 * * * *"),
			AlertsPerTenant:  getEnvAsInt("SLA_ALERTS_PER_TENANT", 50),
			AlertWindow:      getEnvAsDuration("SLA_ALERT_WINDOW", time.Hour),
			SweepBatchSize:   getEnvAsInt("SLA_SWEEP_BATCH_SIZE", 500),
			DefaultExclPause: getEnvAsBool("SLA_EXCLUDE_PAUSE", true),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 365),
			PurgeCron:     getEnv("AUDIT_PURGE_CRON", "0 3 * * *"),
		},
		Admin: AdminConfig{
			PanelEnabled:       getEnvAsBool("ADMIN_PANEL_ENABLED", false),
			SuperadminEmail:    getEnv("SUPERADMIN_EMAIL", ""),
			SuperadminPassword: getEnv("SUPERADMIN_PASSWORD", ""),
			SuperadminName:     getEnv("SUPERADMIN_NAME", "Superadmin"),
			SuperadminTenant:   getEnv("SUPERADMIN_TENANT_SLUG", "default"),
		},
	}

	if cfg.Store.Timeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if cfg.Tenant.CacheTTL <= 0 {
		return nil, fmt.Errorf("TENANT_CACHE_TTL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
