package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got error: %v", err)
	}
	if cfg.Billing.Anchor != "first_remote" {
		t.Errorf("default billing anchor = %q, want first_remote", cfg.Billing.Anchor)
	}
	if cfg.Provider.JoinTimeout != 30*time.Second {
		t.Errorf("default join timeout = %v, want 30s", cfg.Provider.JoinTimeout)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"empty backend url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"unknown provider kind", func(c *Config) { c.Provider.Kind = "daily" }},
		{"zero join timeout", func(c *Config) { c.Provider.JoinTimeout = 0 }},
		{"negative reconnect attempts", func(c *Config) { c.Provider.ReconnectAttempts = -1 }},
		{"unknown billing anchor", func(c *Config) { c.Billing.Anchor = "midpoint" }},
		{"zero credential ttl", func(c *Config) { c.CredentialCache.TTL = 0 }},
		{"redis enabled without address", func(c *Config) {
			c.CredentialCache.Redis.Enabled = true
			c.CredentialCache.Redis.Address = ""
		}},
		{"udp sink without port range", func(c *Config) {
			c.Sinks.Kind = "udp"
			c.Sinks.PortRangeMin = 0
		}},
		{"inverted sink port range", func(c *Config) {
			c.Sinks.Kind = "udp"
			c.Sinks.PortRangeMin = 50000
			c.Sinks.PortRangeMax = 40000
		}},
		{"rate limiting enabled with zero rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.RequestsPerSecond = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.RateLimiting.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file should fall back to defaults, got: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q, want :8080", cfg.Server.Address)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("provider:\n  kind: sfu\nbilling:\n  anchor: local_join\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TELECALL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider.Kind != "sfu" {
		t.Errorf("Provider.Kind = %q, want sfu", cfg.Provider.Kind)
	}
	if cfg.Billing.Anchor != "local_join" {
		t.Errorf("Billing.Anchor = %q, want local_join", cfg.Billing.Anchor)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (env override)", cfg.Logging.Level)
	}
}
