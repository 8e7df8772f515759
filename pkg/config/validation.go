package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mschuler/nwebdav/pkg/registry"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate at least one mount exists
	if len(cfg.Mounts) == 0 {
		return fmt.Errorf("mounts: at least one mount must be configured")
	}

	// Validate mount names and URL prefixes are unique
	names := make(map[string]bool)
	prefixes := make(map[string]bool)
	for i, mount := range cfg.Mounts {
		if names[mount.Name] {
			return fmt.Errorf("mounts[%d]: duplicate mount name %q", i, mount.Name)
		}
		names[mount.Name] = true

		prefix := registry.NormalizePrefix(mount.Prefix)
		if prefixes[prefix] {
			return fmt.Errorf("mounts[%d]: duplicate mount prefix %q", i, mount.Prefix)
		}
		prefixes[prefix] = true
	}

	// Validate at least one adapter is enabled
	if !cfg.Adapters.WebDAV.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	// The badger lock manager needs a place to persist its state
	if cfg.Locks.Type == "badger" {
		opts, err := decodeBadgerLockOptions(cfg.Locks.Options)
		if err != nil {
			return fmt.Errorf("locks: %w", err)
		}
		if opts.Path == "" {
			return fmt.Errorf("locks: badger lock manager requires options.path")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
