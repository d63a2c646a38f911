package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration of the server. Values come
// from the environment; command line flags may override them before
// the server starts.
type Config struct {
	// BindAddress is the HTTP listener address.
	BindAddress string `env:"POINTDECK_BIND_ADDRESS" envDefault:"127.0.0.1"`

	// BindPort is the HTTP listener port.
	BindPort int `env:"POINTDECK_BIND_PORT" envDefault:"8080"`

	// MaxSessions caps the number of concurrently live sessions.
	MaxSessions int `env:"POINTDECK_MAX_SESSIONS" envDefault:"8"`

	// MaxUsers caps the number of users in a single session.
	MaxUsers int `env:"POINTDECK_MAX_USERS" envDefault:"16"`

	// Debug enables verbose development logging.
	Debug bool `env:"POINTDECK_DEBUG" envDefault:"false"`
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the listener and capacity settings are usable.
// Call it again after applying flag overrides.
func (c Config) Validate() error {
	if c.BindAddress == "" {
		return fmt.Errorf("bind address must not be empty")
	}
	if c.BindPort < 1 || c.BindPort > 65535 {
		return fmt.Errorf("bind port must be in 1-65535, got %d", c.BindPort)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be positive, got %d", c.MaxSessions)
	}
	if c.MaxUsers < 1 {
		return fmt.Errorf("max users must be positive, got %d", c.MaxUsers)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.BindPort))
}
