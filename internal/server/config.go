// Package server provides configuration helpers that define runtime defaults
// and validation for the chat relay.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Host            string        `env:"HOST"`
	Port            string        `env:"PORT" envDefault:"3000" validate:"required,numeric"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" envDefault:"4096" validate:"gt=0"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE" envDefault:"256" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
}

var validate = validator.New()

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg, err := LoadConfig(map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults.
func NewConfigFromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig builds a Config from the given variables instead of the process
// environment.
func LoadConfig(environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
