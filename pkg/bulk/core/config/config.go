package config

// Package config provides structures and utilities for managing the
// orchestrator configuration.

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go when the YAML is compiled into the binary.
type EmbeddedConfig []byte

// LimitsConfig holds the platform quota configuration. The numbers are
// supplied per deployment; the orchestrator enforces whatever it is given.
type LimitsConfig struct {
	// MaxRowsPerBatch is the per-call row quota.
	MaxRowsPerBatch int `yaml:"max_rows_per_batch"`
	// MaxBytesPerBatch is the per-call payload quota in bytes.
	MaxBytesPerBatch int `yaml:"max_bytes_per_batch"`
	// MaxConcurrency is the backend's concurrent-request quota; it sizes the
	// shared token bucket.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// RetryConfig holds the retry/backoff configuration for retryable call
// outcomes.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of retry attempts.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval caps the backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the exponential growth factor between attempts.
	JitterFraction  float64 `yaml:"jitter_fraction"`  // JitterFraction adds up to this fraction of random spread to each interval.
	// RetryableClasses lists additional error class names treated as
	// retryable, beyond RATE_LIMITED and TRANSIENT_UNAVAILABLE.
	RetryableClasses []string `yaml:"retryable_classes"`
}

// PollingConfig holds the asynchronous job polling configuration.
type PollingConfig struct {
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the first poll interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval caps the poll interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor grows the interval between polls.
	WaitBudget      int     `yaml:"wait_budget"`      // WaitBudget is the total polling budget in milliseconds.
}

// OperationConfig holds configuration for planning and executing operations.
type OperationConfig struct {
	// SyncThreshold is the batch size below which the engine issues one call
	// per record instead of submitting a bulk job.
	SyncThreshold int `yaml:"sync_threshold"`
	// WorkerCount bounds the internal concurrency of synchronous per-record
	// execution within one batch.
	WorkerCount int `yaml:"worker_count"`
	// BatchBoundary is the backend's internal batch-processing size. Bulk
	// trigger tests generate BatchBoundary+1 records so downstream
	// bulk-processing logic is exercised.
	BatchBoundary int `yaml:"batch_boundary"`
	// Limits is the platform quota configuration.
	Limits LimitsConfig `yaml:"limits"`
	// Retry is the call retry configuration.
	Retry RetryConfig `yaml:"retry"`
	// Polling is the bulk job polling configuration.
	Polling PollingConfig `yaml:"polling"`
}

// ScoringConfig holds the per-category score maxima. Categories absent from
// the map keep their defaults.
type ScoringConfig struct {
	CategoryMaxima map[string]int `yaml:"category_maxima"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g. "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g. "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig holds the trace store connection settings.
type DatabaseConfig struct {
	// Driver selects the trace store dialect: "sqlite", "postgres" or "mysql".
	Driver string `yaml:"driver"`
	// DSN is the driver connection string.
	DSN string `yaml:"dsn"`
}

// ReportConfig holds the report sink settings.
type ReportConfig struct {
	// Path is the destination file for line-delimited JSON reports.
	Path string `yaml:"path"`
}

// FactoryConfig holds loosely typed generation properties for the test-data
// factory. EdgeCases is bound onto the factory's edge-case settings at spec
// registration time, so deployments tune injection fractions in YAML without
// code changes.
type FactoryConfig struct {
	EdgeCases map[string]interface{} `yaml:"edge_cases"`
}

// BulkheadConfig holds all configuration under the "bulkhead" top-level key.
type BulkheadConfig struct {
	Operation OperationConfig `yaml:"operation"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Factory   FactoryConfig   `yaml:"factory"`
	System    SystemConfig    `yaml:"system"`
	Database  DatabaseConfig  `yaml:"database"`
	Report    ReportConfig    `yaml:"report"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Bulkhead BulkheadConfig `yaml:"bulkhead"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not
	// from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults. The quota numbers are
// deliberately conservative; deployments override them with the real
// platform limits.
func NewConfig() *Config {
	return &Config{
		Bulkhead: BulkheadConfig{
			Operation: OperationConfig{
				SyncThreshold: 200,
				WorkerCount:   8,
				BatchBoundary: 250,
				Limits: LimitsConfig{
					MaxRowsPerBatch:  10000,
					MaxBytesPerBatch: 10 * 1024 * 1024,
					MaxConcurrency:   5,
				},
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 200,
					MaxInterval:     10_000,
					Factor:          2.0,
					JitterFraction:  0.2,
				},
				Polling: PollingConfig{
					InitialInterval: 1_000,
					MaxInterval:     30_000,
					Factor:          1.5,
					WaitBudget:      600_000,
				},
			},
			Scoring: ScoringConfig{},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Database: DatabaseConfig{
				Driver: "sqlite",
				DSN:    "file:bulkhead_traces.db?cache=shared",
			},
			Report: ReportConfig{
				Path: "bulkhead-report.jsonl",
			},
		},
	}
}

// GlobalConfig is a pointer to the configuration instance shared across the
// application. It is expected to be set via fx.Supply or fx.Provide.
var GlobalConfig *Config
