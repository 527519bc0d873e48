package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "/data/jobboard.db")
	t.Setenv("SECRET_KEY", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, DefaultTokenTTL, cfg.TokenTTL)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, DefaultMaintenanceCron, cfg.MaintenanceCron)
	require.Equal(t, DefaultStatsInterval, cfg.StatsInterval)
	require.Equal(t, DefaultAuditCapacity, cfg.AuditCapacity)
	require.Equal(t, ":8080", cfg.Addr())
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"no database url", "DATABASE_URL"},
		{"no secret key", "SECRET_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobboard.yaml")
	data := []byte("database_url: /tmp/from-file.db\nsecret_key: file-secret\nport: 9090\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("DATABASE_URL", "/data/from-env.db")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins where set; the file fills the rest.
	require.Equal(t, "/data/from-env.db", cfg.DatabaseURL)
	require.Equal(t, "file-secret", cfg.SecretKey)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 2*time.Hour, cfg.TokenTTL)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	setRequired(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"port negative", func(c *Config) { c.Port = -1 }, true},
		{"rate limit without burst", func(c *Config) { c.RateLimitRPS = 5; c.RateLimitBurst = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DatabaseURL: "/data/x.db", SecretKey: "k", Port: 8080}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
