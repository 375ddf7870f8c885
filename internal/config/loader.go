package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentplane.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTPLANE_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTPLANE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTPLANE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTPLANE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTPLANE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTPLANE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTPLANE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.AccountID, "AGENTPLANE_AWS_ACCOUNT_ID")
	setString(&cfg.AWS.Environment, "AGENTPLANE_ENVIRONMENT")
	setString(&cfg.AWS.ConfigPath, "AGENTPLANE_CONFIG_PATH")
	setString(&cfg.AWS.Endpoint, "AGENTPLANE_AWS_ENDPOINT")
	setString(&cfg.Builder.Command, "AGENTPLANE_BUILDER_COMMAND")
	setDuration(&cfg.Builder.Timeout, "AGENTPLANE_BUILDER_TIMEOUT")
	setInt(&cfg.Pipeline.MaxParallel, "AGENTPLANE_PIPELINE_MAX_PARALLEL")
	setDuration(&cfg.Pipeline.StageTimeout, "AGENTPLANE_PIPELINE_STAGE_TIMEOUT")
	setDuration(&cfg.Pipeline.PollInterval, "AGENTPLANE_PIPELINE_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.PollTimeout, "AGENTPLANE_PIPELINE_POLL_TIMEOUT")
	setBool(&cfg.Telemetry.Enabled, "AGENTPLANE_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFloat64(&cfg.Telemetry.SampleRatio, "AGENTPLANE_OTEL_SAMPLE_RATIO")
	setString(&cfg.Logging.Level, "AGENTPLANE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTPLANE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AGENTPLANE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTPLANE_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "AGENTPLANE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "AGENTPLANE_CACHE_TTL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.AWS.Region == "" {
		return errors.New("aws.region is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Pipeline.MaxParallel < 1 {
		return errors.New("pipeline.max_parallel must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

// ConfigStorePath returns the parameter path prefix for the central
// configuration store. An explicit ConfigPath wins over the derived
// environment path.
func (a AWS) ConfigStorePath() string {
	if a.ConfigPath != "" {
		return a.ConfigPath
	}
	return "/agentic-platform/" + a.Environment
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
