// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetStorageTimeout() time.Duration
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides settings for the asynq queue and progress store.
type RedisConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// BatchStoreConfig provides settings for the MinIO batch-document store.
type BatchStoreConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketBatchDocuments() string
	IsMinIOEnabled() bool
}

// ReconcileConfig provides settings for the reconciliation engine.
type ReconcileConfig interface {
	// GetReconcileSyncLimit is the largest batch processed inline; bigger
	// batches are enqueued to the background worker.
	GetReconcileSyncLimit() int
	// GetReconcileMaxRowErrors caps how many row errors a report carries.
	GetReconcileMaxRowErrors() int
	// GetReconcileProgressTTL is how long batch progress stays readable.
	GetReconcileProgressTTL() time.Duration
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	StorageTimeout time.Duration

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOUseSSL         bool
	BucketBatchDocs     string
	MinIOEnabled        bool

	ReconcileSyncLimit    int
	ReconcileMaxRowErrors int
	ReconcileProgressTTL  time.Duration
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	minioEndpoint := getEnv("MINIO_ENDPOINT", "")

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		StorageTimeout: mustDuration(getEnv("STORAGE_TIMEOUT", "5s")),

		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "reconcile"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),

		MinIOEndpoint:   minioEndpoint,
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:     strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		BucketBatchDocs: getEnv("MINIO_BUCKET_BATCH_DOCUMENTS", "reconcile-batches"),
		MinIOEnabled:    minioEndpoint != "",

		ReconcileSyncLimit:    mustInt(getEnv("RECONCILE_SYNC_LIMIT", "200")),
		ReconcileMaxRowErrors: mustInt(getEnv("RECONCILE_MAX_ROW_ERRORS", "25")),
		ReconcileProgressTTL:  mustDuration(getEnv("RECONCILE_PROGRESS_TTL", "24h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.StorageTimeout <= 0 {
		return nil, fmt.Errorf("STORAGE_TIMEOUT must be a positive duration")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string            { return c.DatabaseURL }
func (c *Config) GetStorageTimeout() time.Duration  { return c.StorageTimeout }
func (c *Config) GetJWTAccessSecret() string        { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string               { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool             { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string          { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool           { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string               { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string         { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int          { return c.AsynqConcurrency }
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketBatchDocuments() string { return c.BucketBatchDocs }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEnabled }
func (c *Config) GetReconcileSyncLimit() int        { return c.ReconcileSyncLimit }
func (c *Config) GetReconcileMaxRowErrors() int     { return c.ReconcileMaxRowErrors }
func (c *Config) GetReconcileProgressTTL() time.Duration { return c.ReconcileProgressTTL }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
