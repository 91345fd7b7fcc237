package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Validate checks settings and hook declarations.
// Returns error if the config is invalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.CompareByValueDepth < 0 {
		return fmt.Errorf("compare_by_value_depth must not be negative, got %d", cfg.CompareByValueDepth)
	}

	names := make(map[string]bool, len(cfg.Hooks))
	for i, spec := range cfg.Hooks {
		if err := ValidateHookSpec(spec); err != nil {
			return fmt.Errorf("hooks[%d]: %w", i, err)
		}
		name := spec.WithDefaults().Name
		if names[name] {
			return fmt.Errorf("hooks[%d]: duplicate hook name %q", i, name)
		}
		names[name] = true
	}
	return nil
}

// ValidateHookSpec checks one hook kind declaration.
func ValidateHookSpec(spec types.HookSpec) error {
	spec = spec.WithDefaults()

	if spec.Selector == "" {
		return fmt.Errorf("hook selector is required")
	}
	if strings.ContainsAny(spec.Selector, " \t\r\n") {
		return fmt.Errorf("hook %s: selector %q contains whitespace", spec.Name, spec.Selector)
	}
	if strings.ContainsAny(spec.OpeningDelimiter, " \t\r\n") || strings.ContainsAny(spec.ClosingDelimiter, " \t\r\n") {
		return fmt.Errorf("hook %s: delimiters must not contain whitespace", spec.Name)
	}

	lists := map[string][]string{
		"allow_inputs":  spec.AllowInputs,
		"deny_inputs":   spec.DenyInputs,
		"allow_outputs": spec.AllowOutputs,
		"deny_outputs":  spec.DenyOutputs,
	}
	for key, patterns := range lists {
		for _, pattern := range patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("hook %s: invalid %s pattern %q: %w", spec.Name, key, pattern, err)
			}
		}
	}
	return nil
}
