package runtime

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds extruntime configuration. The host passes these through
// the child's environment.
type Config struct {
	EvalBudget  time.Duration `envconfig:"EXTRUNTIME_EVAL_BUDGET" default:"5s"`
	CallTimeout time.Duration `envconfig:"EXTRUNTIME_CALL_TIMEOUT" default:"3s"`
	LogLevel    string        `envconfig:"EXTRUNTIME_LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		EvalBudget:  5 * time.Second,
		CallTimeout: 3 * time.Second,
		LogLevel:    "info",
	}
}
