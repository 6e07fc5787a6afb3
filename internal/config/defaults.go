package config

import "time"

// ApplyDefaults fills zero-valued fields with production defaults,
// mirroring the connection server's own applyDefaults for the fields it
// duplicates so a Config built without Load (e.g. in tests) still ends
// up sane.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "auto"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 2049
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Minute
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MetricsLogInterval == 0 {
		cfg.Server.MetricsLogInterval = 5 * time.Minute
	}

	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "memfs"
	}
}

// Default returns a fully-defaulted Config, for callers that want to run
// the engine with no config file at all.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
