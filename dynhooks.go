// Package dynhooks finds hooks in content, binds their attributes to a
// context value and mounts a unit for each of them.
//
// A hook is a marker in a string (`<app-counter [count]="context.n">`) or an
// element in a parsed HTML tree. Hooks may nest; nested hooks are mounted
// before the hooks that contain them are told about their content.
//
// # Basic Usage
//
//	engine, err := dynhooks.New(
//	    dynhooks.WithHookSpec(types.HookSpec{Selector: "app-counter"}),
//	    dynhooks.WithUnit("app-counter", types.Eager(counterClass)),
//	    dynhooks.WithFactory(factory),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	result, err := engine.Parse(ctx, content, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	<-result.Settled()
//
// # Updates
//
// Update re-evaluates the bindings that depend on the context and passes the
// inputs that changed to the mounted instances:
//
//	changed := engine.Update(newData)
package dynhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/binding"
	"github.com/praetorian-inc/dynhooks/pkg/config"
	"github.com/praetorian-inc/dynhooks/pkg/expr"
	"github.com/praetorian-inc/dynhooks/pkg/finder"
	"github.com/praetorian-inc/dynhooks/pkg/mount"
	"github.com/praetorian-inc/dynhooks/pkg/position"
	"github.com/praetorian-inc/dynhooks/pkg/prefilter"
	"github.com/praetorian-inc/dynhooks/pkg/tree"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Re-export commonly used types for convenience.
type (
	// HookSpec declares one kind of hook.
	HookSpec = types.HookSpec

	// Hook is a hook found by a parse.
	Hook = types.Hook

	// UnitSpec says which unit a hook kind mounts.
	UnitSpec = types.UnitSpec

	// UnitInfo is a snapshot of a mounted unit.
	UnitInfo = mount.UnitInfo
)

// HookIDAttribute is set on hook elements by ParseElement.
const HookIDAttribute = "data-hook-id"

// ErrClosed is returned by Parse and ParseElement after Close.
var ErrClosed = errors.New("engine is closed")

// registration is one hook kind known to the engine.
type registration struct {
	spec    types.HookSpec
	find    finder.Finder
	element finder.ElementFinder
	attrs   finder.AttributeReader
	filter  *binding.Filter
}

// Engine runs parses and owns the units they mount. Parses replace each
// other: a new parse destroys the units of the previous one.
type Engine struct {
	mu       sync.Mutex
	cfg      *config.Config
	log      *slog.Logger
	regs     []*registration
	byName   map[string]*registration
	units    map[string]types.UnitSpec
	pre      *prefilter.Prefilter
	nStrings int
	builder  *tree.Builder
	bindings *binding.Manager
	coord    *mount.Coordinator
	closed   bool
}

// New creates an engine with the given options.
//
// Hook kinds declared in the configuration are registered first, followed by
// the ones passed as options. When two kinds share a parser name the later
// one is ignored.
func New(opts ...Option) (*Engine, error) {
	ec := &engineConfig{}
	for _, opt := range opts {
		opt(ec)
	}

	log := ec.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg, err := loadConfig(ec)
	if err != nil {
		return nil, err
	}

	if len(ec.units) > 0 && ec.factory == nil {
		return nil, fmt.Errorf("units registered without a factory")
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		byName:  make(map[string]*registration),
		units:   ec.units,
		builder: tree.NewBuilder(),
	}

	specs := make([]registration, 0, len(cfg.Hooks)+len(ec.finders))
	for _, spec := range cfg.Hooks {
		specs = append(specs, registration{spec: spec})
	}
	specs = append(specs, ec.finders...)
	for _, reg := range specs {
		if err := e.register(reg); err != nil {
			return nil, err
		}
	}

	var stringFinders []finder.Finder
	for _, reg := range e.regs {
		if reg.find != nil {
			stringFinders = append(stringFinders, reg.find)
		}
	}
	e.pre = prefilter.New(stringFinders)
	e.nStrings = len(stringFinders)

	e.bindings = binding.NewManager(expr.New(cfg.ExprOptions()), log)
	e.coord = mount.NewCoordinator(ec.factory, e.bindings, ec.store, cfg.MountConfig(), log)

	log.Debug("engine created", "parsers", len(e.regs), "units", len(e.units))
	return e, nil
}

func loadConfig(ec *engineConfig) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case ec.configPath != "":
		loaded, err := config.NewLoader().LoadFile(ec.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	case ec.config != nil:
		cfg = ec.config.Clone()
	default:
		cfg = config.Default()
	}

	for _, fn := range ec.knobs {
		fn(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (e *Engine) register(reg registration) error {
	if reg.find == nil && reg.element == nil {
		if err := config.ValidateHookSpec(reg.spec); err != nil {
			return err
		}
		sel, err := finder.NewSelector(reg.spec, e.log)
		if err != nil {
			return err
		}
		reg.spec = sel.Spec()
		reg.find = sel
		reg.element = sel
	}
	if reg.find != nil {
		if ar, ok := reg.find.(finder.AttributeReader); ok {
			reg.attrs = ar
		}
	}

	name := reg.spec.Name
	if _, dup := e.byName[name]; dup {
		e.log.Warn("parser name already registered, later registration ignored", "parser", name)
		return nil
	}

	filter, err := binding.NewFilter(reg.spec)
	if err != nil {
		return err
	}
	reg.filter = filter

	r := reg
	e.regs = append(e.regs, &r)
	e.byName[name] = &r
	return nil
}

// Parsers returns the registered parser names in registration order.
func (e *Engine) Parsers() []string {
	names := make([]string, 0, len(e.regs))
	for _, reg := range e.regs {
		names = append(names, reg.spec.Name)
	}
	return names
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg.Clone()
}

// Parse finds the hooks in content and mounts their units against data.
//
// It returns once every eager unit is mounted; Result.Settled is closed when
// the deferred ones have settled too. Per-hook failures are logged and never
// returned.
func (e *Engine) Parse(ctx context.Context, content string, data any) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("nil context")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	active := e.pre.Filter(content)
	if skipped := e.nStrings - len(active); skipped > 0 {
		e.log.Debug("prefilter skipped parsers", "skipped", skipped, "active", len(active))
	}

	var cands []types.Candidate
	for _, f := range active {
		positions, err := f.Find(content)
		if err != nil {
			e.log.Warn("finder failed", "parser", f.Name(), "err", err)
			continue
		}
		for _, p := range positions {
			cands = append(cands, types.Candidate{Position: p, Parser: f.Name()})
		}
	}

	valid := position.Validate(cands, len(content), content, e.log)
	hooks := e.builder.Build(valid, content)
	pass := e.coord.Mount(ctx, e.targets(hooks), data)

	return newResult(anchor(content, hooks), nil, hooks, pass), nil
}

// ParseElement finds hook elements below root and mounts their units
// against data. Every hook element gets a data-hook-id attribute.
func (e *Engine) ParseElement(ctx context.Context, root *html.Node, data any) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("nil context")
	}
	if root == nil {
		return nil, fmt.Errorf("nil root node")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	var cands []types.Candidate
	for _, reg := range e.regs {
		if reg.element == nil {
			continue
		}
		positions, err := reg.element.FindElements(root)
		if err != nil {
			e.log.Warn("finder failed", "parser", reg.spec.Name, "err", err)
			continue
		}
		for _, p := range positions {
			cands = append(cands, types.Candidate{Position: p, Parser: reg.spec.Name})
		}
	}

	valid := position.Validate(cands, finder.ElementSpan(root), "", e.log)
	hooks := e.builder.Build(valid, "")
	for _, h := range hooks {
		setAttr(h.Value.Element, HookIDAttribute, fmt.Sprint(h.ID))
	}
	pass := e.coord.Mount(ctx, e.targets(hooks), data)

	return newResult("", root, hooks, pass), nil
}

// targets pairs every hook with its unit and filtered attributes. Hooks whose
// parser has no unit get an empty UnitSpec: they mount nothing but stay in
// the coordinator's tree, so walks through them reach nested units.
func (e *Engine) targets(hooks []*types.Hook) []mount.Target {
	targets := make([]mount.Target, 0, len(hooks))
	for _, h := range hooks {
		unit, ok := e.units[h.Parser]
		if !ok {
			targets = append(targets, mount.Target{Hook: h})
			continue
		}
		reg := e.byName[h.Parser]

		var attrs []types.RawAttribute
		switch {
		case h.Value.Element != nil:
			for _, a := range finder.ElementAttributes(h.Value.Element) {
				if a.Name != HookIDAttribute {
					attrs = append(attrs, a)
				}
			}
		case reg.attrs != nil:
			attrs = reg.attrs.Attributes(h.Value.Opening)
		}

		targets = append(targets, mount.Target{
			Hook:       h,
			Unit:       unit,
			Attributes: reg.filter.Apply(attrs),
		})
	}
	return targets
}

// Update re-evaluates bindings against data and pushes changed inputs to
// mounted units. It returns the changed input names per hook id.
func (e *Engine) Update(data any) map[int][]string {
	return e.coord.Update(data)
}

// Unit returns a snapshot of the unit mounted for a hook.
func (e *Engine) Unit(hookID int) (UnitInfo, bool) {
	return e.coord.Unit(hookID)
}

// DestroyHook destroys a hook's unit and the units nested in it.
func (e *Engine) DestroyHook(hookID int) {
	e.coord.Destroy(hookID)
}

// Destroy tears down every unit of the current parse and cancels pending
// resolutions. The engine stays usable.
func (e *Engine) Destroy() {
	e.coord.DestroyAll()
}

// Close destroys all units. Parse and ParseElement fail afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.coord.DestroyAll()
	return nil
}

func setAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
