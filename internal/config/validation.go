package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over cfg and adds the
// cross-field checks validator tags can't express (osfs requiring a
// root directory).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Backend.Kind == "osfs" && cfg.Backend.Root == "" {
		return fmt.Errorf("backend.root is required when backend.kind is %q", cfg.Backend.Kind)
	}
	return nil
}
