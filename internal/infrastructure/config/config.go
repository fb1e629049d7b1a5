package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server     ServerConfig
	Extensions ExtensionsConfig
	Store      StoreConfig
	Runtime    RuntimeConfig
	Updates    UpdatesConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"7700"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// ExtensionsConfig holds extension storage configuration.
type ExtensionsConfig struct {
	Root string `envconfig:"EXTENSIONS_ROOT" default:"/var/lib/blueprint/extensions"`
}

// StoreConfig holds extension store client configuration.
type StoreConfig struct {
	URL               string        `envconfig:"STORE_URL" default:"https://store.blueprint.app/api/v1"`
	Timeout           time.Duration `envconfig:"STORE_TIMEOUT" default:"30s"`
	MaxRetries        int           `envconfig:"STORE_MAX_RETRIES" default:"3"`
	CacheSize         int           `envconfig:"STORE_CACHE_SIZE" default:"256"`
	CacheTTL          time.Duration `envconfig:"STORE_CACHE_TTL" default:"5m"`
	RequestsPerSecond float64       `envconfig:"STORE_RPS" default:"10"`
}

// RuntimeConfig holds extension runtime process configuration.
type RuntimeConfig struct {
	Binary         string        `envconfig:"RUNTIME_BIN" default:"extruntime"`
	CallTimeout    time.Duration `envconfig:"RUNTIME_CALL_TIMEOUT" default:"30s"`
	StatsTimeout   time.Duration `envconfig:"RUNTIME_STATS_TIMEOUT" default:"10s"`
	RestartBackoff time.Duration `envconfig:"RUNTIME_RESTART_BACKOFF" default:"1s"`
	RestartCap     int           `envconfig:"RUNTIME_RESTART_CAP" default:"3"`
	ShutdownGrace  time.Duration `envconfig:"RUNTIME_SHUTDOWN_GRACE" default:"3s"`
}

// UpdatesConfig holds background update check configuration.
type UpdatesConfig struct {
	Enabled  bool   `envconfig:"UPDATES_ENABLED" default:"true"`
	Schedule string `envconfig:"UPDATES_SCHEDULE" default:"@every 6h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7700",
			Host: "127.0.0.1",
		},
		Extensions: ExtensionsConfig{
			Root: "/var/lib/blueprint/extensions",
		},
		Store: StoreConfig{
			URL:               "https://store.blueprint.app/api/v1",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			CacheSize:         256,
			CacheTTL:          5 * time.Minute,
			RequestsPerSecond: 10,
		},
		Runtime: RuntimeConfig{
			Binary:         "extruntime",
			CallTimeout:    30 * time.Second,
			StatsTimeout:   10 * time.Second,
			RestartBackoff: time.Second,
			RestartCap:     3,
			ShutdownGrace:  3 * time.Second,
		},
		Updates: UpdatesConfig{
			Enabled:  true,
			Schedule: "@every 6h",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
