// Package mount creates units for hooks, resolves deferred unit classes and
// propagates binding changes to mounted instances.
//
// Eager units mount synchronously in hook id order. Deferred units get a
// pending record right away and a single resolver goroutine; when the class
// arrives the unit mounts and its ancestors are told their content changed.
// A resolution that settles after its pass was replaced, or after its hook
// was destroyed, does nothing.
package mount

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/dynhooks/pkg/binding"
	"github.com/praetorian-inc/dynhooks/pkg/compare"
	"github.com/praetorian-inc/dynhooks/pkg/store"
	"github.com/praetorian-inc/dynhooks/pkg/tree"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Config controls update propagation.
type Config struct {
	Comparer         compare.Comparer
	UpdateOnPushOnly bool // skip Update when the context is the same reference
}

// Target is a hook to mount with its unit spec and the attributes that
// passed the hook kind's filter.
type Target struct {
	Hook       *types.Hook
	Unit       types.UnitSpec
	Attributes []types.RawAttribute
}

// Coordinator owns the mounted units of one engine.
type Coordinator struct {
	mu       sync.Mutex
	factory  Factory
	bindings *binding.Manager
	units    store.Store
	cfg      Config
	log      *slog.Logger

	ref     *types.ContextRef
	hooks   map[int]*types.Hook
	pass    uint64
	cancel  context.CancelFunc
	hasData bool
}

// NewCoordinator creates a coordinator. A nil store uses an in-memory one.
func NewCoordinator(factory Factory, bindings *binding.Manager, units store.Store, cfg Config, log *slog.Logger) *Coordinator {
	if units == nil {
		units = store.NewMemory()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		factory:  factory,
		bindings: bindings,
		units:    units,
		cfg:      cfg,
		log:      log,
		ref:      types.NewContextRef(nil),
		hooks:    make(map[int]*types.Hook),
	}
}

// Mount tears down the previous pass and mounts targets against data.
// It returns once every eager unit is mounted and notified.
func (c *Coordinator) Mount(ctx context.Context, targets []Target, data any) *Pass {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	c.pass++
	pass := &Pass{id: c.pass, settled: make(chan struct{})}
	passCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.ref.Store(data)
	c.hasData = true

	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Hook.ID < sorted[j].Hook.ID })

	c.hooks = make(map[int]*types.Hook, len(sorted))
	for _, t := range sorted {
		c.hooks[t.Hook.ID] = t.Hook
	}

	var group errgroup.Group
	var mounted []*types.MountedUnit
	deferred := 0

	for _, t := range sorted {
		unit := c.createLocked(t, data, pass.id)
		if unit == nil {
			continue
		}
		if unit.Pending {
			deferred++
			pass.pending.Add(1)
			resolver := t.Unit.Resolver()
			hookID := unit.HookID
			group.Go(func() error {
				defer pass.pending.Add(-1)
				c.resolve(passCtx, pass.id, hookID, resolver)
				return nil
			})
			continue
		}
		mounted = append(mounted, unit)
	}

	for _, unit := range mounted {
		c.notifyMountLocked(unit)
	}

	c.log.Debug("mount pass complete",
		"pass", pass.id,
		"hooks", len(sorted),
		"mounted", len(mounted),
		"pending", deferred,
	)

	if deferred == 0 {
		close(pass.settled)
	} else {
		go func() {
			_ = group.Wait()
			close(pass.settled)
		}()
	}
	return pass
}

// createLocked builds the unit record for t. Eager units are mounted; a nil
// return means the hook has no unit.
func (c *Coordinator) createLocked(t Target, data any, passID uint64) *types.MountedUnit {
	hook := t.Hook
	log := c.log.With("hook_id", hook.ID, "parser", hook.Parser)

	if t.Unit.Empty() {
		log.Debug("hook has no unit")
		return nil
	}
	if err := t.Unit.Validate(); err != nil {
		log.Warn("hook has no usable unit, skipping", "err", err)
		return nil
	}

	mgr := c.bindings.With("hook_id", hook.ID, "parser", hook.Parser)
	unit := &types.MountedUnit{
		HookID:   hook.ID,
		Parser:   hook.Parser,
		Inputs:   mgr.CreateInputs(t.Attributes, data),
		Outputs:  mgr.CreateOutputs(t.Attributes, c.ref),
		ChildIDs: hook.ChildIDs,
		State:    types.StateUnresolved,
		Pass:     passID,
	}

	if t.Unit.Kind() == types.UnitDeferred {
		unit.Pending = true
		unit.State = types.StatePending
		if err := c.units.Put(unit); err != nil {
			log.Warn("storing unit failed, hook skipped", "err", err)
			return nil
		}
		return unit
	}

	unit.Class = t.Unit.Class()
	if err := c.instantiateLocked(unit); err != nil {
		log.Warn("unit construction failed, hook discarded", "class", unit.Class.ClassName(), "err", err)
		return nil
	}
	if err := c.units.Put(unit); err != nil {
		log.Warn("storing unit failed, hook discarded", "class", unit.Class.ClassName(), "err", err)
		c.factory.Unmount(unit.Instance)
		unit.Instance = nil
		unit.State = types.StateDestroyed
		return nil
	}
	return unit
}

func (c *Coordinator) instantiateLocked(unit *types.MountedUnit) error {
	unit.State = types.StateMounting
	inst, err := c.factory.Mount(unit.Class, MountRequest{
		Hook:    c.hooks[unit.HookID],
		Inputs:  unit.InputValues(),
		Outputs: unit.OutputHandlers(),
	})
	if err != nil {
		unit.State = types.StateDestroyed
		return err
	}
	unit.Instance = inst
	unit.Pending = false
	unit.State = types.StateMounted
	return nil
}

// resolve runs a deferred resolver and mounts the unit if its pass and hook
// are still live.
func (c *Coordinator) resolve(ctx context.Context, passID uint64, hookID int, resolver types.Resolver) {
	class, err := callResolver(ctx, resolver)
	if err == nil && class == nil {
		err = ErrNilClass
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.log.With("hook_id", hookID, "pass", passID)
	unit, ok := c.units.Get(hookID)
	if passID != c.pass || !ok || unit.Pass != passID || unit.State != types.StatePending {
		log.Debug("stale deferred resolution ignored")
		return
	}
	log = log.With("parser", unit.Parser)

	if err != nil {
		unit.State = types.StateAbandoned
		log.Warn("deferred unit resolution failed, hook left unmounted", "err", err)
		return
	}

	unit.Class = class
	c.bindings.With("hook_id", hookID, "parser", unit.Parser).UpdateInputs(unit.Inputs, c.ref.Load())
	if err := c.instantiateLocked(unit); err != nil {
		log.Warn("unit construction failed, hook discarded", "class", class.ClassName(), "err", err)
		_ = c.units.Delete(hookID)
		return
	}

	c.notifyMountLocked(unit)
	c.notifyAncestorsLocked(hookID)
}

func callResolver(ctx context.Context, resolver types.Resolver) (class types.Class, err error) {
	defer func() {
		if r := recover(); r != nil {
			class, err = nil, fmt.Errorf("resolver panicked: %v", r)
		}
	}()
	return resolver(ctx)
}

// Update refreshes every unit's inputs against data and propagates the inputs
// whose values changed. It returns the changed input names per hook id.
func (c *Coordinator) Update(data any) map[int][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.UpdateOnPushOnly && c.hasData && compare.Same(c.ref.Load(), data) {
		return nil
	}
	c.ref.Store(data)
	c.hasData = true

	changed := make(map[int][]string)
	for _, id := range c.units.IDs() {
		unit, _ := c.units.Get(id)
		if unit.State != types.StateMounted && unit.State != types.StatePending {
			continue
		}

		previous := unit.InputValues()
		mgr := c.bindings.With("hook_id", id, "parser", unit.Parser)
		names := mgr.UpdateInputs(unit.Inputs, data)
		if unit.State != types.StateMounted || len(names) == 0 {
			continue
		}

		changes := make(map[string]Change)
		for _, name := range names {
			current := unit.Inputs[name].Value
			if c.unchangedLocked(unit, name, previous[name], current) {
				continue
			}
			changes[name] = Change{Previous: previous[name], Current: current}
		}
		if len(changes) == 0 {
			continue
		}

		if err := c.factory.Update(unit.Instance, changes); err != nil {
			c.log.Warn("propagating changes failed", "hook_id", id, "parser", unit.Parser, "err", err)
		}
		for name := range changes {
			changed[id] = append(changed[id], name)
		}
		sort.Strings(changed[id])
	}
	return changed
}

func (c *Coordinator) unchangedLocked(unit *types.MountedUnit, name string, previous, current any) bool {
	eq, rep := c.cfg.Comparer.Equal(previous, current)
	if rep.Fallback {
		c.log.Warn("binding value not comparable by value, compared by reference",
			"hook_id", unit.HookID, "parser", unit.Parser, "binding", name, "err", rep.Err)
	}
	if rep.DepthHits > 0 {
		c.log.Debug("comparison depth limit reached",
			"hook_id", unit.HookID, "binding", name, "hits", rep.DepthHits)
	}
	return eq
}

// Destroy destroys a hook's unit and every unit nested in it.
func (c *Coordinator) Destroy(hookID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.hooks[hookID]; !ok {
		return
	}
	ancestors := tree.Ancestors(c.hooks, hookID)
	ids := append(tree.Descendants(c.hooks, hookID), hookID)
	for _, id := range ids {
		c.destroyLocked(id)
	}
	for _, id := range ids {
		delete(c.hooks, id)
	}
	for _, id := range ancestors {
		c.notifyChangesLocked(id)
	}
}

// DestroyAll tears down the current pass and cancels its pending resolutions.
func (c *Coordinator) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Coordinator) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	ids := c.units.IDs()
	// children have larger ids than their parents
	for i := len(ids) - 1; i >= 0; i-- {
		c.destroyLocked(ids[i])
	}
	c.units.Reset()
	c.hooks = make(map[int]*types.Hook)
}

func (c *Coordinator) destroyLocked(id int) {
	unit, ok := c.units.Get(id)
	if !ok {
		return
	}
	if unit.Instance != nil {
		c.factory.Unmount(unit.Instance)
	}
	unit.State = types.StateDestroyed
	unit.Instance = nil
	_ = c.units.Delete(id)
}

// Unit returns a snapshot of the unit mounted for hookID.
func (c *Coordinator) Unit(hookID int) (UnitInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unit, ok := c.units.Get(hookID)
	if !ok {
		return UnitInfo{}, false
	}
	return UnitInfo{
		HookID:   unit.HookID,
		Parser:   unit.Parser,
		State:    unit.State,
		Pending:  unit.Pending,
		Class:    unit.Class,
		Instance: unit.Instance,
		Inputs:   unit.InputValues(),
		Outputs:  unit.OutputHandlers(),
	}, true
}

// Context returns the context value bindings currently evaluate against.
func (c *Coordinator) Context() *types.ContextRef {
	return c.ref
}

func (c *Coordinator) notifyMountLocked(unit *types.MountedUnit) {
	if l, ok := unit.Instance.(MountListener); ok {
		l.OnDynamicMount(MountEvent{
			HookID:          unit.HookID,
			ContentChildren: c.contentChildrenLocked(unit.HookID),
		})
	}
}

func (c *Coordinator) notifyAncestorsLocked(hookID int) {
	for _, id := range tree.Ancestors(c.hooks, hookID) {
		c.notifyChangesLocked(id)
	}
}

func (c *Coordinator) notifyChangesLocked(hookID int) {
	unit, ok := c.units.Get(hookID)
	if !ok || unit.State != types.StateMounted {
		return
	}
	if l, ok := unit.Instance.(ChangeListener); ok {
		l.OnDynamicChanges(ChangesEvent{
			HookID:          hookID,
			ContentChildren: c.contentChildrenLocked(hookID),
		})
	}
}

func (c *Coordinator) contentChildrenLocked(hookID int) []ContentChild {
	hook, ok := c.hooks[hookID]
	if !ok {
		return nil
	}
	var out []ContentChild
	for _, childID := range hook.ChildIDs {
		if _, live := c.hooks[childID]; !live {
			continue
		}
		nested := c.contentChildrenLocked(childID)
		unit, ok := c.units.Get(childID)
		if !ok || unit.State != types.StateMounted {
			out = append(out, nested...)
			continue
		}
		out = append(out, ContentChild{
			HookID:          childID,
			Instance:        unit.Instance,
			ContentChildren: nested,
		})
	}
	return out
}
