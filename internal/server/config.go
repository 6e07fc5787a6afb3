package server

import (
	"fmt"
	"time"
)

// TimeoutsConfig groups the per-connection deadlines applied while a
// connection is idle or mid-read/write.
type TimeoutsConfig struct {
	Read     time.Duration `mapstructure:"read" validate:"min=0"`
	Write    time.Duration `mapstructure:"write" validate:"min=0"`
	Idle     time.Duration `mapstructure:"idle" validate:"min=0"`
	Shutdown time.Duration `mapstructure:"shutdown" validate:"min=0"`
}

// Config is the connection server's configuration. Host accepts the
// literal token "auto" as well as any bindable address.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections caps concurrently accepted sockets; 0 is unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	// MetricsLogInterval is how often the server logs a connection-count
	// snapshot; applyDefaults replaces 0 with 5 minutes, and a negative
	// value disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "auto"
	}
	if c.Port <= 0 {
		c.Port = 2049
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = 5 * time.Minute
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("invalid timeouts.shutdown %v: must be > 0", c.Timeouts.Shutdown)
	}
	return nil
}
