package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/uspolicy-client/pkg/logging"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is prepended to every variable name, e.g. POLICY_PROXY_BACKEND_URL.
const envPrefix = "POLICY_PROXY"

// Config holds the proxy configuration.
type Config struct {
	// BackendURL is the document-chat backend root
	BackendURL string `envconfig:"BACKEND_URL" required:"true"`

	Port int `envconfig:"PORT" default:"8080"`

	// RedisAddr enables sessions and response caching; empty disables both
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// AllowedOrigins is a comma-separated CORS allow list; "*" allows any origin
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	CacheEnabled bool          `envconfig:"CACHE_ENABLED" default:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %s)", c.Timeout)
	}
	for _, origin := range c.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("allowed origin must be \"*\" or start with http:// or https:// (got %q)", origin)
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.LogLevel))
	cfg.Pretty = c.LogPretty
	return cfg
}
