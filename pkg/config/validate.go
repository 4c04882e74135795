package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct tag validation plus the cross-field checks that
// validator tags alone can't express: the default store name must refer to
// a store actually declared in cfg.Registry.Stores, and every alias target
// must be either such a store or another alias.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	names := make(map[string]bool, len(cfg.Registry.Stores))
	for _, s := range cfg.Registry.Stores {
		if names[s.Name] {
			return fmt.Errorf("store %q declared more than once", s.Name)
		}
		names[s.Name] = true
	}

	if cfg.Registry.DefaultStore != "" && !names[cfg.Registry.DefaultStore] {
		return fmt.Errorf("default_store %q is not a configured store", cfg.Registry.DefaultStore)
	}

	for alias, target := range cfg.Registry.Aliases {
		if names[alias] {
			return fmt.Errorf("alias %q collides with a configured store name", alias)
		}
		if !names[target] && cfg.Registry.Aliases[target] == "" {
			return fmt.Errorf("alias %q targets unknown store %q", alias, target)
		}
	}

	return nil
}
