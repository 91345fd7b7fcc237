package dynhooks

import (
	"log/slog"

	"github.com/praetorian-inc/dynhooks/pkg/config"
	"github.com/praetorian-inc/dynhooks/pkg/finder"
	"github.com/praetorian-inc/dynhooks/pkg/mount"
	"github.com/praetorian-inc/dynhooks/pkg/store"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// engineConfig holds engine configuration.
type engineConfig struct {
	logger     *slog.Logger
	config     *config.Config
	configPath string
	knobs      []func(*config.Config)
	finders    []registration
	units      map[string]types.UnitSpec
	factory    mount.Factory
	store      store.Store
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithConfig uses cfg instead of the embedded defaults.
func WithConfig(cfg *config.Config) Option {
	return func(c *engineConfig) {
		c.config = cfg
	}
}

// WithConfigFile loads the configuration from a YAML file.
// It takes precedence over WithConfig.
func WithConfigFile(path string) Option {
	return func(c *engineConfig) {
		c.configPath = path
	}
}

// WithHookSpec registers a hook kind found by its markers (string mode) or
// its tag name (element mode).
func WithHookSpec(spec types.HookSpec) Option {
	return func(c *engineConfig) {
		c.finders = append(c.finders, registration{spec: spec.WithDefaults()})
	}
}

// WithFinder registers a custom string-mode finder. spec supplies the
// attribute filters; its name is replaced by the finder's. If f also
// implements finder.ElementFinder it is used in element mode too, and if it
// implements finder.AttributeReader it reads the attributes of its hooks.
func WithFinder(f finder.Finder, spec types.HookSpec) Option {
	return func(c *engineConfig) {
		spec.Name = f.Name()
		reg := registration{spec: spec, find: f}
		if ef, ok := f.(finder.ElementFinder); ok {
			reg.element = ef
		}
		c.finders = append(c.finders, reg)
	}
}

// WithElementFinder registers a custom element-mode finder.
func WithElementFinder(f finder.ElementFinder, spec types.HookSpec) Option {
	return func(c *engineConfig) {
		spec.Name = f.Name()
		c.finders = append(c.finders, registration{spec: spec, element: f})
	}
}

// WithUnit binds the unit mounted for hooks reported by the named parser.
func WithUnit(parser string, unit types.UnitSpec) Option {
	return func(c *engineConfig) {
		if c.units == nil {
			c.units = make(map[string]types.UnitSpec)
		}
		c.units[parser] = unit
	}
}

// WithFactory sets the factory that builds unit instances. It is required
// once any unit is registered.
func WithFactory(factory mount.Factory) Option {
	return func(c *engineConfig) {
		c.factory = factory
	}
}

// WithStore sets the table mounted units are kept in.
func WithStore(s store.Store) Option {
	return func(c *engineConfig) {
		c.store = s
	}
}

// WithCompareByValue propagates inputs only when their content changes,
// comparing up to depth levels deep.
func WithCompareByValue(depth int) Option {
	return knob(func(cfg *config.Config) {
		cfg.CompareByValue = true
		cfg.CompareByValueDepth = depth
	})
}

// WithUpdateOnPushOnly skips updates whose context is the same reference as
// the previous one.
func WithUpdateOnPushOnly() Option {
	return knob(func(cfg *config.Config) {
		cfg.UpdateOnPushOnly = true
	})
}

// WithoutContextInBindings makes expressions that reference the context
// evaluate to their raw text.
func WithoutContextInBindings() Option {
	return knob(func(cfg *config.Config) {
		cfg.AllowContextInBindings = false
	})
}

// WithoutFunctionCalls rejects calls in expressions.
func WithoutFunctionCalls() Option {
	return knob(func(cfg *config.Config) {
		cfg.AllowContextFunctionCalls = false
	})
}

// WithoutUnescape keeps backslashes in string literals.
func WithoutUnescape() Option {
	return knob(func(cfg *config.Config) {
		cfg.UnescapeStrings = false
	})
}

func knob(fn func(*config.Config)) Option {
	return func(c *engineConfig) {
		c.knobs = append(c.knobs, fn)
	}
}
