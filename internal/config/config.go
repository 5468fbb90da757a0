// Package config loads mailwarden's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mailwarden/internal/elicit"
)

// Retro bounds retroactive rule application.
type Retro struct {
	BatchSize      int           `yaml:"batch_size"`
	MaxItems       int           `yaml:"max_items"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
}

// Config holds all runtime configuration. Zero values are filled from
// DefaultConfig; a missing file means pure defaults.
type Config struct {
	// FallbackPolicy applies when interactive confirmation is
	// unavailable: block, allow, or draft.
	FallbackPolicy string `yaml:"fallback_policy"`
	// Interactive enables the confirmation round-trip for untrusted
	// recipients. Off means the fallback policy always applies.
	Interactive bool `yaml:"interactive"`
	// ElicitTimeout bounds the wait for a confirmation response.
	ElicitTimeout time.Duration `yaml:"elicit_timeout"`

	Retro Retro `yaml:"retro"`

	TrustListPath  string `yaml:"trust_list_path"`
	RulesDBPath    string `yaml:"rules_db_path"`
	AuditLogPath   string `yaml:"audit_log_path"`
	CredentialsDir string `yaml:"credentials_dir"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	base := filepath.Join(home, ".mailwarden")
	return &Config{
		FallbackPolicy: string(elicit.FallbackBlock),
		Interactive:    true,
		ElicitTimeout:  elicit.DefaultTimeout,
		Retro: Retro{
			BatchSize:      100,
			MaxItems:       0,
			RateLimitDelay: 100 * time.Millisecond,
		},
		TrustListPath:  filepath.Join(base, "trusted.txt"),
		RulesDBPath:    filepath.Join(base, "rules.db"),
		AuditLogPath:   filepath.Join(base, "audit.jsonl"),
		CredentialsDir: base,
	}
}

// Load reads the config file and merges it over defaults. An empty
// path or missing file returns defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := elicit.ParseFallbackPolicy(c.FallbackPolicy); err != nil {
		return err
	}
	if c.Retro.BatchSize < 0 {
		return fmt.Errorf("retro.batch_size must not be negative")
	}
	if c.Retro.MaxItems < 0 {
		return fmt.Errorf("retro.max_items must not be negative")
	}
	if c.Retro.RateLimitDelay < 0 {
		return fmt.Errorf("retro.rate_limit_delay must not be negative")
	}
	if c.ElicitTimeout < 0 {
		return fmt.Errorf("elicit_timeout must not be negative")
	}
	return nil
}

// Fallback returns the parsed fallback policy. validate() already
// rejected unknown values.
func (c *Config) Fallback() elicit.FallbackPolicy {
	p, err := elicit.ParseFallbackPolicy(c.FallbackPolicy)
	if err != nil {
		return elicit.FallbackBlock
	}
	return p
}
