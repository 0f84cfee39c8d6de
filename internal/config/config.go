// Package config loads server configuration from a YAML file, with
// environment overrides for the values that are secrets in production.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

type Auth struct {
	TokenSecret string        `yaml:"tokenSecret"`
	TokenTTL    time.Duration `yaml:"tokenTTL"`
}

type Database struct {
	// URI is a pgx connection string. Empty selects the in-memory store.
	URI string `yaml:"uri"`
}

type Accounts struct {
	DeletionDelay time.Duration `yaml:"deletionDelay"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Auth     Auth     `yaml:"auth"`
	Database Database `yaml:"database"`
	Accounts Accounts `yaml:"accounts"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Auth: Auth{
			TokenTTL: 24 * time.Hour,
		},
		Accounts: Accounts{
			DeletionDelay: 30 * 24 * time.Hour,
		},
	}
}

// Load reads the file over the defaults. An empty path skips the file and
// uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("MARGARET_DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
	if v := os.Getenv("MARGARET_TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("config: http.addr must not be empty")
	}
	if cfg.Auth.TokenSecret == "" {
		return fmt.Errorf("config: auth.tokenSecret is required (or MARGARET_TOKEN_SECRET)")
	}
	if cfg.Accounts.DeletionDelay < 0 {
		return fmt.Errorf("config: accounts.deletionDelay must not be negative")
	}
	return nil
}
