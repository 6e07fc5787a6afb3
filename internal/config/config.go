// Package config loads the engine's configuration from NFSD_* environment
// variables, a YAML file, and defaults, in that order of precedence, using
// viper for source merging and validator for structural checks.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the engine's complete static configuration.
//
// Precedence (highest to lowest): NFSD_* environment variables > YAML
// config file > defaults.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
}

// LoggingConfig controls the internal/logger package.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig controls the internal/server connection server. Host
// accepts "auto" for the 127.88.x.y probing convention.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port" validate:"min=0,max=65535"`
	MaxConnections     int           `mapstructure:"max_connections" validate:"min=0"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// BackendConfig selects and configures the active vfs.FileSystem
// implementation.
type BackendConfig struct {
	// Kind is "memfs" or "osfs".
	Kind string `mapstructure:"kind" validate:"oneof=memfs osfs"`

	// ReadOnly rejects mutating NFS calls with NFS3ERR_ROFS regardless of
	// what the backend itself would otherwise allow. Watched live via
	// fsnotify so a config file edit takes effect without a restart.
	ReadOnly bool `mapstructure:"read_only"`

	// Root is the host directory osfs mirrors; ignored by memfs.
	Root string `mapstructure:"root"`
}

// Load reads configPath (if non-empty) plus NFSD_* environment overrides
// into a validated Config. An empty or missing configPath is not an
// error: defaults and environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		if !isConfigFileNotFound(err) {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// WatchReadOnly invokes onChange whenever the backend's read_only flag
// changes in the watched config file, using viper's fsnotify-backed
// WatchConfig. configPath must be the same file Load was given.
func WatchReadOnly(configPath string, onChange func(readOnly bool)) error {
	if configPath == "" {
		return nil
	}
	v := viper.New()
	setupViper(v, configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: watch: read %q: %w", configPath, err)
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		onChange(v.GetBool("backend.read_only"))
	})
	v.WatchConfig()
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NFSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only answers for keys viper already knows, so every key
	// is bound explicitly for Unmarshal to see NFSD_* values without a file.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"server.host", "server.port", "server.max_connections",
		"server.read_timeout", "server.write_timeout", "server.idle_timeout",
		"server.shutdown_timeout", "server.metrics_log_interval",
		"backend.kind", "backend.read_only", "backend.root",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/nfsd")
		}
		v.AddConfigPath("/etc/nfsd")
	}
}

func isConfigFileNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok || os.IsNotExist(err)
}
