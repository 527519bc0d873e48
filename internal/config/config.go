// Package config builds the immutable runtime configuration. Settings
// come from an optional YAML file overlaid by environment variables;
// the result is constructed once at startup and handed to every
// component that needs it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"golang.org/x/crypto/bcrypt"
)

// Defaults applied by Normalize.
const (
	DefaultPort            = 8080
	DefaultTokenTTL        = 24 * time.Hour
	DefaultMaintenanceCron = "@daily"
	DefaultStatsInterval   = 30 * time.Second
	DefaultAuditCapacity   = 1024
)

// Config is the complete runtime configuration of the server.
type Config struct {
	// DatabaseURL selects the storage backend: postgres:// for
	// PostgreSQL, memory:// for the in-process store, anything else
	// is treated as a SQLite file path.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	// SecretKey signs session tokens. Required.
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`

	Port     int    `yaml:"port" env:"PORT"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// CORSAllowedOrigins is a semicolon-separated origin list in the
	// environment form; empty means allow any origin.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`

	// RateLimitRPS of zero or less disables rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	// AuditLogPath, when set, appends every audit entry as one JSON
	// line to the named file.
	AuditLogPath  string `yaml:"audit_log_path" env:"AUDIT_LOG_PATH"`
	AuditCapacity int    `yaml:"audit_capacity" env:"AUDIT_CAPACITY"`

	// MaintenanceCron schedules database housekeeping; StatsInterval
	// paces the monitoring gauge refresh.
	MaintenanceCron string        `yaml:"maintenance_cron" env:"MAINTENANCE_CRON"`
	StatsInterval   time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`

	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// Load reads the optional YAML file at path (ignored when path is
// empty or the file does not exist), overlays environment variables,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// A missing settings file is fine; env vars carry the load.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	// Environment variables override file settings; envdecode only
	// touches fields whose variable is actually set.
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills unset fields with their defaults.
func (c *Config) Normalize() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.MaintenanceCron == "" {
		c.MaintenanceCron = DefaultMaintenanceCron
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.AuditCapacity <= 0 {
		c.AuditCapacity = DefaultAuditCapacity
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	for i, origin := range c.CORSAllowedOrigins {
		c.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
	}
}

// Validate reports configuration the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1 when rate limiting is on")
	}
	return nil
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
