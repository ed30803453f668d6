package config

import "time"

// LoadTestConfig returns a config suitable for in-process tests: sqlite,
// in-memory tenant cache and no background workers.
func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8081,
			RateLimit:   1000,
			BodyLimit:   "1M",
			Timeout:     5 * time.Second,
			ServiceName: "cmms-test",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   ":memory:",
		},
		JWT: JWTConfig{
			Secret:        "test-secret",
			AccessTTL:     time.Hour,
			RefreshTTL:    2 * time.Hour,
			SigningIssuer: "cmms-test",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level:       "error",
			Environment: "test",
		},
		Tenant: TenantConfig{
			FallbackID:   "00000000-0000-0000-0000-000000000001",
			FallbackSlug: "default",
			CacheTTL:     60 * time.Second,
			CacheBackend: "memory",
		},
		Store: StoreConfig{
			Timeout: 2 * time.Second,
		},
		RBAC: RBACConfig{
			AutoMigrate: true,
		},
		SLA: SLAConfig{
			SweepCron:        "*/5 * * * *",
			AlertsPerTenant:  10,
			AlertWindow:      time.Hour,
			SweepBatchSize:   100,
			DefaultExclPause: true,
		},
		Audit: AuditConfig{
			RetentionDays: 30,
			PurgeCron:     "0 3 * * *",
		},
	}
}
