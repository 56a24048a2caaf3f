// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Worker    WorkerConfig
	Import    ImportConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadSize   int64
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the host:port Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// WorkerConfig holds background job worker configuration.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

// ImportConfig holds CSV import pipeline configuration.
type ImportConfig struct {
	// ChunkSize bounds every store query that filters by a set of
	// fingerprints or IDs. The store rejects unbounded parameter lists,
	// so this is a correctness limit, not a tuning knob.
	ChunkSize int

	// TxTimeout bounds one chunk's reconciliation transaction. Chunks
	// upsert thousands of rows, so this is minutes, not seconds.
	TxTimeout time.Duration

	// ProgressTTL is how long an operation's status survives without
	// updates before expiring.
	ProgressTTL time.Duration
}

// SchedulerConfig holds the summary refresh scheduler configuration.
type SchedulerConfig struct {
	Enabled bool
	// RecalcCron is a standard 5-field cron expression.
	RecalcCron string
}

// StorageConfig holds the optional S3 upload archive configuration.
type StorageConfig struct {
	Enabled         bool
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// maxChunkSize keeps chunked queries well below the Postgres limit of
// 65535 bind parameters per statement.
const maxChunkSize = 5000

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "vulnmanage"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxUploadSize:   getEnvInt64("SERVER_MAX_UPLOAD_SIZE", 64<<20), // 64MB
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "vulnmanage"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "vulnmanage"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Worker: WorkerConfig{
			Enabled:     getEnvBool("WORKER_ENABLED", true),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		},
		Import: ImportConfig{
			ChunkSize:   getEnvInt("IMPORT_CHUNK_SIZE", 1000),
			TxTimeout:   getEnvDuration("IMPORT_TX_TIMEOUT", 5*time.Minute),
			ProgressTTL: getEnvDuration("IMPORT_PROGRESS_TTL", 2*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Enabled:    getEnvBool("SCHEDULER_ENABLED", true),
			RecalcCron: getEnv("SCHEDULER_RECALC_CRON", "30 2 * * *"),
		},
		Storage: StorageConfig{
			Enabled:         getEnvBool("STORAGE_ARCHIVE_ENABLED", false),
			Region:          getEnv("STORAGE_S3_REGION", "us-east-1"),
			Bucket:          getEnv("STORAGE_S3_BUCKET", ""),
			Endpoint:        getEnv("STORAGE_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Import.ChunkSize < 1 || c.Import.ChunkSize > maxChunkSize {
		return fmt.Errorf("import chunk size must be between 1 and %d, got %d", maxChunkSize, c.Import.ChunkSize)
	}
	if c.Import.TxTimeout < time.Minute {
		return fmt.Errorf("import transaction timeout must be at least 1m, got %s", c.Import.TxTimeout)
	}
	if c.Import.ProgressTTL < 10*time.Minute {
		return fmt.Errorf("import progress TTL must be at least 10m, got %s", c.Import.ProgressTTL)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_S3_BUCKET is required when upload archiving is enabled")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
