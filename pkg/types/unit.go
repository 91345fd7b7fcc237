package types

import (
	"context"
	"fmt"
)

// Class identifies a mountable unit type.
type Class interface {
	ClassName() string
}

// Resolver resolves a deferred unit class. It is called at most once per hook.
type Resolver func(ctx context.Context) (Class, error)

// UnitKind tags the variant held by a UnitSpec.
type UnitKind int

const (
	// UnitEager holds a class that is available immediately.
	UnitEager UnitKind = iota + 1
	// UnitDeferred holds a resolver that produces the class asynchronously.
	UnitDeferred
)

// UnitSpec describes which unit a hook kind mounts. The variant is fixed when
// the value is built with Eager or Deferred.
type UnitSpec struct {
	kind     UnitKind
	class    Class
	resolver Resolver
}

// Eager returns a spec for a class that is available now.
func Eager(class Class) UnitSpec {
	return UnitSpec{kind: UnitEager, class: class}
}

// Deferred returns a spec whose class is resolved lazily.
func Deferred(resolver Resolver) UnitSpec {
	return UnitSpec{kind: UnitDeferred, resolver: resolver}
}

// Kind returns the variant tag. The zero UnitSpec has kind 0.
func (u UnitSpec) Kind() UnitKind { return u.kind }

// Empty reports whether no unit was set.
func (u UnitSpec) Empty() bool { return u.kind == 0 }

// Class returns the eager class (nil for deferred specs).
func (u UnitSpec) Class() Class { return u.class }

// Resolver returns the deferred resolver (nil for eager specs).
func (u UnitSpec) Resolver() Resolver { return u.resolver }

// Validate checks that the value carries what its variant needs.
func (u UnitSpec) Validate() error {
	switch u.kind {
	case UnitEager:
		if u.class == nil {
			return fmt.Errorf("eager unit spec has nil class")
		}
	case UnitDeferred:
		if u.resolver == nil {
			return fmt.Errorf("deferred unit spec has nil resolver")
		}
	default:
		return fmt.Errorf("unit spec has no variant")
	}
	return nil
}

// Instance is the opaque handle returned by the unit factory.
type Instance any

// UnitState is the lifecycle state of a mounted unit.
type UnitState int

const (
	StateUnresolved UnitState = iota
	StateMounting
	StatePending // deferred class still resolving
	StateMounted
	StateAbandoned // deferred resolution failed
	StateDestroyed
)

// String returns the string representation of UnitState
func (s UnitState) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateMounting:
		return "mounting"
	case StatePending:
		return "pending"
	case StateMounted:
		return "mounted"
	case StateAbandoned:
		return "abandoned"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MountedUnit is the runtime record of a hook's unit.
type MountedUnit struct {
	HookID   int
	Parser   string
	Class    Class
	Instance Instance // nil while pending
	Inputs   map[string]*Binding
	Outputs  map[string]*OutputBinding
	ChildIDs []int
	Pending  bool
	State    UnitState
	Pass     uint64 // pass that created the unit
}

// InputValues returns the current value of every input binding.
func (u *MountedUnit) InputValues() map[string]any {
	values := make(map[string]any, len(u.Inputs))
	for name, b := range u.Inputs {
		values[name] = b.Value
	}
	return values
}

// OutputHandlers returns the handler of every output binding.
func (u *MountedUnit) OutputHandlers() map[string]OutputHandler {
	handlers := make(map[string]OutputHandler, len(u.Outputs))
	for name, o := range u.Outputs {
		handlers[name] = o.Handler
	}
	return handlers
}
