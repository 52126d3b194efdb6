// Package config loads and validates the server's YAML configuration file,
// with environment-variable overrides for the values operators most often
// need to change per-deployment (ports, store endpoints, credentials).
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration document.
type Config struct {
	Server  ServerConfig  `yaml:"server" validate:"required"`
	Store   StoreConfig   `yaml:"store" validate:"required"`
	Publish PublishConfig `yaml:"publish"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig controls the HTTP listener and orchestrator concurrency.
type ServerConfig struct {
	Addr               string `yaml:"addr" validate:"required,hostname_port"`
	MaxConcurrentHosts int    `yaml:"max_concurrent_hosts" validate:"omitempty,min=1,max=256"`
	MaxExtensionDepth  int    `yaml:"max_extension_depth" validate:"omitempty,min=1,max=10"`
}

// StoreConfig describes the tiered search-store client (spec §6, A8).
type StoreConfig struct {
	HTTPBaseURL  string `yaml:"http_base_url" validate:"required,url"`
	S3Bucket     string `yaml:"s3_bucket,omitempty"`
	S3Region     string `yaml:"s3_region,omitempty"`
	ColdTierOnly bool   `yaml:"cold_tier_only,omitempty"`
}

// PublishConfig describes A7's mangos PUB broadcaster.
type PublishConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

// AuditConfig describes A6's optional Postgres-backed audit sink.
type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			MaxConcurrentHosts: 8,
			MaxExtensionDepth:  2,
		},
		Store: StoreConfig{
			HTTPBaseURL: "http://localhost:9200",
		},
	}
}

// Load reads path (if non-empty), applies environment overrides, then
// validates the result. An empty path starts from Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validatorInstance().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment env vars win over the file, matching
// the teacher's PORT/TLS_* environment-override convention in cmd/server.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHAINGRAPH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("CHAINGRAPH_STORE_URL"); v != "" {
		cfg.Store.HTTPBaseURL = v
	}
	if v := os.Getenv("CHAINGRAPH_S3_BUCKET"); v != "" {
		cfg.Store.S3Bucket = v
	}
	if v := os.Getenv("CHAINGRAPH_S3_REGION"); v != "" {
		cfg.Store.S3Region = v
	}
	if v := os.Getenv("CHAINGRAPH_MAX_CONCURRENT_HOSTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConcurrentHosts = n
		}
	}
	if v := os.Getenv("CHAINGRAPH_PUBLISH_ADDR"); v != "" {
		cfg.Publish.Enabled = true
		cfg.Publish.Addr = v
	}
	if v := os.Getenv("CHAINGRAPH_AUDIT_DSN"); v != "" {
		cfg.Audit.PostgresDSN = v
	}
}
