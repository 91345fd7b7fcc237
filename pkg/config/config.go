// Package config loads engine settings and hook kind declarations from YAML.
package config

import (
	"github.com/praetorian-inc/dynhooks/pkg/compare"
	"github.com/praetorian-inc/dynhooks/pkg/expr"
	"github.com/praetorian-inc/dynhooks/pkg/mount"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Config holds the engine settings.
type Config struct {
	// AllowContextInBindings enables context-rooted paths in expressions.
	AllowContextInBindings bool
	// AllowContextFunctionCalls enables calls in expressions.
	AllowContextFunctionCalls bool
	UnescapeStrings           bool

	// CompareByValue propagates an input only when its value differs by
	// content, up to CompareByValueDepth levels deep.
	CompareByValue      bool
	CompareByValueDepth int

	// UpdateOnPushOnly skips update passes whose context is the same
	// reference as the previous one.
	UpdateOnPushOnly bool

	Hooks []types.HookSpec
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := NewLoader().Defaults()
	if err != nil {
		panic("config: embedded defaults are invalid: " + err.Error())
	}
	return cfg
}

// ExprOptions returns the evaluator options.
func (c *Config) ExprOptions() expr.Options {
	return expr.Options{
		AllowContext:    c.AllowContextInBindings,
		AllowCalls:      c.AllowContextFunctionCalls,
		UnescapeStrings: c.UnescapeStrings,
	}
}

// Comparer returns the comparer for update propagation.
func (c *Config) Comparer() compare.Comparer {
	return compare.Comparer{
		ByValue:  c.CompareByValue,
		MaxDepth: c.CompareByValueDepth,
	}
}

// MountConfig returns the coordinator settings.
func (c *Config) MountConfig() mount.Config {
	return mount.Config{
		Comparer:         c.Comparer(),
		UpdateOnPushOnly: c.UpdateOnPushOnly,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Hooks = make([]types.HookSpec, len(c.Hooks))
	copy(out.Hooks, c.Hooks)
	return &out
}
