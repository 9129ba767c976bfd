package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from defaults, embedded YAML and environment
// variables, in that order of increasing precedence. It is intended to be
// called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		// yaml.Unmarshal over the default-populated struct keeps defaults for
		// keys absent from the YAML.
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.New(moduleName, exception.ClassValidation, "failed to unmarshal embedded config", err)
		}
	}

	if err := overrideFromEnv(reflect.ValueOf(cfg).Elem(), "BULKHEAD"); err != nil {
		return nil, exception.New(moduleName, exception.ClassValidation, "failed to load config from environment variables", err)
	}

	return cfg, nil
}

// overrideFromEnv walks the config struct and overrides leaf fields from
// environment variables named after the yaml tag path, upper-cased and joined
// with underscores (e.g. BULKHEAD_OPERATION_LIMITS_MAX_ROWS_PER_BATCH).
func overrideFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if tag == "-" || tag == "" {
			continue
		}
		key := prefix + "_" + strings.ToUpper(tag)
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct {
			if err := overrideFromEnv(fv, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return exception.Newf(moduleName, exception.ClassValidation, "invalid integer for %s: %q", key, raw)
			}
			fv.SetInt(n)
		case reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return exception.Newf(moduleName, exception.ClassValidation, "invalid float for %s: %q", key, raw)
			}
			fv.SetFloat(f)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return exception.Newf(moduleName, exception.ClassValidation, "invalid boolean for %s: %q", key, raw)
			}
			fv.SetBool(b)
		default:
			// Slices and maps stay YAML-only.
		}
	}
	return nil
}

// Validate checks the loaded configuration for values the orchestrator
// cannot operate with.
func (c *Config) Validate() error {
	op := c.Bulkhead.Operation
	if op.Limits.MaxRowsPerBatch <= 0 {
		return exception.Newf(moduleName, exception.ClassLimitConfiguration, "max_rows_per_batch must be positive, got %d", op.Limits.MaxRowsPerBatch)
	}
	if op.Limits.MaxBytesPerBatch <= 0 {
		return exception.Newf(moduleName, exception.ClassLimitConfiguration, "max_bytes_per_batch must be positive, got %d", op.Limits.MaxBytesPerBatch)
	}
	if op.Limits.MaxConcurrency <= 0 {
		return exception.Newf(moduleName, exception.ClassLimitConfiguration, "max_concurrency must be positive, got %d", op.Limits.MaxConcurrency)
	}
	if op.BatchBoundary <= 0 {
		return exception.Newf(moduleName, exception.ClassValidation, "batch_boundary must be positive, got %d", op.BatchBoundary)
	}
	for _, name := range op.Retry.RetryableClasses {
		if !exception.IsClassRegistered(name) {
			return exception.Newf(moduleName, exception.ClassValidation, "unknown retryable error class %q", name)
		}
	}
	for name := range c.Bulkhead.Scoring.CategoryMaxima {
		if c.Bulkhead.Scoring.CategoryMaxima[name] < 0 {
			return exception.Newf(moduleName, exception.ClassValidation, "category maximum for %q must not be negative", name)
		}
	}
	return nil
}

// NewConfigProvider is an Fx provider that loads, validates and provides
// *Config. It also sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Bulkhead.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Bulkhead.System.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment
// variables. It is expected to be called only once during application
// startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
