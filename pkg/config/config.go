package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Backend struct {
		BaseURL        string        `yaml:"base_url"`
		TokenPath      string        `yaml:"token_path"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		NotifyRetries  int           `yaml:"notify_retries"`
	} `yaml:"backend"`

	Provider struct {
		Kind       string `yaml:"kind"`        // "callobject" or "sfu"
		GatewayURL string `yaml:"gateway_url"` // sfu only: signaling gateway endpoint
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		JoinTimeout       time.Duration `yaml:"join_timeout"`
		SubscribeTimeout  time.Duration `yaml:"subscribe_timeout"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
	} `yaml:"provider"`

	Billing struct {
		Anchor string `yaml:"anchor"` // "first_remote" or "local_join"
	} `yaml:"billing"`

	CredentialCache struct {
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"credential_cache"`

	Sinks struct {
		Kind          string `yaml:"kind"` // "udp" or "null"
		ForwardBase   string `yaml:"forward_base"`
		PortRangeMin  int    `yaml:"port_range_min"`
		PortRangeMax  int    `yaml:"port_range_max"`
	} `yaml:"sinks"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Backend
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be > 0")
	}
	if c.Backend.NotifyRetries < 0 {
		return fmt.Errorf("backend.notify_retries must be >= 0")
	}

	// Provider
	if c.Provider.Kind != "callobject" && c.Provider.Kind != "sfu" {
		return fmt.Errorf("provider.kind must be \"callobject\" or \"sfu\"")
	}
	if c.Provider.Kind == "sfu" && c.Provider.GatewayURL == "" {
		return fmt.Errorf("provider.gateway_url must be set for the sfu provider")
	}
	if c.Provider.JoinTimeout <= 0 {
		return fmt.Errorf("provider.join_timeout must be > 0")
	}
	if c.Provider.SubscribeTimeout <= 0 {
		return fmt.Errorf("provider.subscribe_timeout must be > 0")
	}
	if c.Provider.ReconnectAttempts < 0 {
		return fmt.Errorf("provider.reconnect_attempts must be >= 0")
	}

	// Billing
	if c.Billing.Anchor != "first_remote" && c.Billing.Anchor != "local_join" {
		return fmt.Errorf("billing.anchor must be \"first_remote\" or \"local_join\"")
	}

	// Credential cache
	if c.CredentialCache.TTL <= 0 {
		return fmt.Errorf("credential_cache.ttl must be > 0")
	}
	if c.CredentialCache.Redis.Enabled {
		if c.CredentialCache.Redis.Address == "" {
			return fmt.Errorf("credential_cache.redis.address must not be empty when redis is enabled")
		}
		if c.CredentialCache.Redis.PoolSize <= 0 {
			return fmt.Errorf("credential_cache.redis.pool_size must be > 0 when redis is enabled")
		}
	}

	// Sinks
	if c.Sinks.Kind != "udp" && c.Sinks.Kind != "null" {
		return fmt.Errorf("sinks.kind must be \"udp\" or \"null\"")
	}
	if c.Sinks.Kind == "udp" {
		if c.Sinks.PortRangeMin <= 0 || c.Sinks.PortRangeMax <= 0 {
			return fmt.Errorf("sinks.port_range_min and max must be set for udp sinks")
		}
		if c.Sinks.PortRangeMin >= c.Sinks.PortRangeMax {
			return fmt.Errorf("sinks.port_range_min must be < max")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Backend.BaseURL = "http://localhost:3000"
	cfg.Backend.TokenPath = "/session/token"
	cfg.Backend.RequestTimeout = 10 * time.Second
	cfg.Backend.NotifyRetries = 3

	cfg.Provider.Kind = "callobject"
	cfg.Provider.JoinTimeout = 30 * time.Second
	cfg.Provider.SubscribeTimeout = 10 * time.Second
	cfg.Provider.ReconnectAttempts = 3

	cfg.Billing.Anchor = "first_remote"

	cfg.CredentialCache.TTL = 2 * time.Minute
	cfg.CredentialCache.Redis.Enabled = false
	cfg.CredentialCache.Redis.Address = "localhost:6379"
	cfg.CredentialCache.Redis.DB = 0
	cfg.CredentialCache.Redis.PoolSize = 10

	cfg.Sinks.Kind = "null"
	cfg.Sinks.ForwardBase = "127.0.0.1"
	cfg.Sinks.PortRangeMin = 40000
	cfg.Sinks.PortRangeMax = 40100

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("TELECALL_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("TELECALL_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if kind := os.Getenv("TELECALL_PROVIDER"); kind != "" {
		c.Provider.Kind = kind
	}
	if level := os.Getenv("TELECALL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("TELECALL_REDIS_ADDRESS"); addr != "" {
		c.CredentialCache.Redis.Address = addr
	}
}
