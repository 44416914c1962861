package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Graph      GraphConfig      `yaml:"graph"`
	Auth       AuthConfig       `yaml:"auth"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

type GraphConfig struct {
	Endpoint string `yaml:"endpoint"` // ArangoDB HTTP endpoint; empty disables the knowledge store
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenDuration string `yaml:"token_duration"` // e.g. "24h"
}

type SandboxConfig struct {
	Shell   string `yaml:"shell"`   // interpreter for hook dry-runs
	Timeout string `yaml:"timeout"` // e.g. "10s"
}

type ReconcilerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"` // e.g. "10m"
	Workers  int    `yaml:"workers"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("VERITY_JWT_SECRET must be set to a non-default value")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("VERITY_JWT_SECRET must be at least 16 characters (current length: %d)", len(c.Auth.JWTSecret))
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be configured")
	}
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "verity.db",
		},
		Graph: GraphConfig{
			Database: "verity",
		},
		Auth: AuthConfig{
			JWTSecret:     "change-me-in-production",
			TokenDuration: "24h",
		},
		Sandbox: SandboxConfig{
			Shell:   "/bin/sh",
			Timeout: "10s",
		},
		Reconciler: ReconcilerConfig{
			Enabled:  true,
			Interval: "10m",
			Workers:  2,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VERITY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VERITY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("VERITY_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("VERITY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("VERITY_GRAPH_ENDPOINT"); v != "" {
		cfg.Graph.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("VERITY_GRAPH_DATABASE"); v != "" {
		cfg.Graph.Database = v
	}
	if v := os.Getenv("VERITY_GRAPH_USERNAME"); v != "" {
		cfg.Graph.Username = v
	}
	if v := os.Getenv("VERITY_GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("VERITY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VERITY_TOKEN_DURATION"); v != "" {
		cfg.Auth.TokenDuration = v
	}
	if v := os.Getenv("VERITY_SANDBOX_SHELL"); v != "" {
		cfg.Sandbox.Shell = v
	}
	if v := os.Getenv("VERITY_SANDBOX_TIMEOUT"); v != "" {
		cfg.Sandbox.Timeout = v
	}
	if v := os.Getenv("VERITY_RECONCILER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Reconciler.Enabled = enabled
		}
	}
	if v := os.Getenv("VERITY_RECONCILER_INTERVAL"); v != "" {
		cfg.Reconciler.Interval = v
	}
	if v := os.Getenv("VERITY_RECONCILER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Reconciler.Workers = n
		}
	}
}
