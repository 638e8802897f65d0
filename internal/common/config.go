package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Worker   WorkerConfig
	Extract  ExtractConfig
	Process  ProcessConfig
	Enrich   EnrichConfig
	BlobDir  string
}

// DatabaseConfig holds database-related configuration. An empty DSN selects
// the embedded SQLite store at Path.
type DatabaseConfig struct {
	DSN              string
	Path             string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// ExtractConfig holds extraction engine configuration
type ExtractConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxTextSize int
}

// ProcessConfig holds AI processing engine configuration
type ProcessConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// EnrichConfig holds enrichment lookup service configuration
type EnrichConfig struct {
	BaseURL        string
	Timeout        time.Duration
	ReferenceField string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			Path:             getEnv("DB_PATH", "./docflow.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Extract: ExtractConfig{
			BaseURL:     getEnv("EXTRACT_URL", ""),
			Timeout:     getEnvAsDuration("EXTRACT_TIMEOUT", 2*time.Minute),
			MaxTextSize: getEnvAsInt("EXTRACT_MAX_TEXT", 1_000_000),
		},
		Process: ProcessConfig{
			BaseURL: getEnv("PROCESS_URL", ""),
			APIKey:  getEnv("PROCESS_API_KEY", ""),
			Timeout: getEnvAsDuration("PROCESS_TIMEOUT_HTTP", 45*time.Second),
		},
		Enrich: EnrichConfig{
			BaseURL:        getEnv("ENRICH_URL", ""),
			Timeout:        getEnvAsDuration("ENRICH_TIMEOUT", 10*time.Second),
			ReferenceField: getEnv("ENRICH_REFERENCE_FIELD", "reference"),
		},
		BlobDir: getEnv("BLOB_DIR", "./blobs"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL or DB_PATH is required", ErrInvalidState)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidState)
	}
	if c.Extract.MaxTextSize <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_MAX_TEXT must be positive", ErrInvalidState)
	}
	return nil
}
