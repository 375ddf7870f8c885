package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.AWS.Region != "us-west-2" {
		t.Errorf("expected region us-west-2, got %s", cfg.AWS.Region)
	}
	if cfg.Pipeline.MaxParallel != 4 {
		t.Errorf("expected max_parallel 4, got %d", cfg.Pipeline.MaxParallel)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
aws:
  region: "eu-central-1"
  account_id: "123456789012"
pipeline:
  max_parallel: 8
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.AWS.Region != "eu-central-1" {
		t.Errorf("expected region eu-central-1, got %s", cfg.AWS.Region)
	}
	if cfg.AWS.AccountID != "123456789012" {
		t.Errorf("expected account 123456789012, got %s", cfg.AWS.AccountID)
	}
	if cfg.Pipeline.MaxParallel != 8 {
		t.Errorf("expected max_parallel 8, got %d", cfg.Pipeline.MaxParallel)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("AGENTPLANE_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("AWS_REGION", "ap-southeast-2")
	t.Setenv("AGENTPLANE_ENVIRONMENT", "staging")
	t.Setenv("AGENTPLANE_PIPELINE_STAGE_TIMEOUT", "20m")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.AWS.Region != "ap-southeast-2" {
		t.Errorf("expected region ap-southeast-2, got %s", cfg.AWS.Region)
	}
	if cfg.AWS.Environment != "staging" {
		t.Errorf("expected environment staging, got %s", cfg.AWS.Environment)
	}
	if cfg.Pipeline.StageTimeout != 20*time.Minute {
		t.Errorf("expected stage timeout 20m, got %v", cfg.Pipeline.StageTimeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "empty region",
			modify: func(c *Config) { c.AWS.Region = "" },
			errMsg: "aws.region is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero max_parallel",
			modify: func(c *Config) { c.Pipeline.MaxParallel = 0 },
			errMsg: "pipeline.max_parallel must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestConfigStorePath(t *testing.T) {
	a := AWS{Environment: "prod"}
	if got := a.ConfigStorePath(); got != "/agentic-platform/prod" {
		t.Errorf("expected /agentic-platform/prod, got %s", got)
	}

	a.ConfigPath = "/custom/path"
	if got := a.ConfigStorePath(); got != "/custom/path" {
		t.Errorf("explicit config_path should win, got %s", got)
	}
}
