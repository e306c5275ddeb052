package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// validate is shared; building a validator caches struct metadata.
var validate = validator.New()

// Config holds all application configuration.
type Config struct {
	Sandbox  SandboxConfig
	Compiler CompilerConfig
	Logging  LogConfig
}

// SandboxConfig holds execution context limits.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s" validate:"gte=0"`
	MaxCallStack int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024" validate:"gte=0"`
	Console      bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
	PoolSize     int           `envconfig:"SANDBOX_POOL_SIZE" default:"4" validate:"gte=1"`
}

// CompilerConfig holds function compilation settings.
type CompilerConfig struct {
	Dialect string `envconfig:"COMPILER_DIALECT" default:"javascript" validate:"oneof=javascript typescript"`
	Seal    bool   `envconfig:"COMPILER_SEAL" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string   `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Development bool     `envconfig:"LOG_DEV" default:"false"`
	Output      []string `envconfig:"LOG_OUTPUT" default:"stderr" validate:"min=1,dive,required"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes the enumerated settings, which are matched without
// regard to case, then checks value ranges and enumerations.
func (c *Config) Validate() error {
	c.Compiler.Dialect = strings.ToLower(strings.TrimSpace(c.Compiler.Dialect))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Timeout:      5 * time.Second,
			MaxCallStack: 1024,
			Console:      true,
			PoolSize:     4,
		},
		Compiler: CompilerConfig{
			Dialect: "javascript",
			Seal:    false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      []string{"stderr"},
		},
	}
}
