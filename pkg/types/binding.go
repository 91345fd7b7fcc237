package types

import "sync"

// AttributeKind tells how a hook attribute is bound.
type AttributeKind int

const (
	// AttrStatic is a plain attribute whose text is passed through as a string input.
	AttrStatic AttributeKind = iota
	// AttrInput is an input binding: [name]="expression".
	AttrInput
	// AttrOutput is an event binding: (name)="expression".
	AttrOutput
)

// String returns the string representation of AttributeKind
func (k AttributeKind) String() string {
	switch k {
	case AttrStatic:
		return "static"
	case AttrInput:
		return "input"
	case AttrOutput:
		return "output"
	default:
		return "unknown"
	}
}

// RawAttribute is one attribute as written on a hook's opening marker.
type RawAttribute struct {
	Name  string // binding name without brackets/parentheses
	Value string // raw attribute value, unquoted
	Kind  AttributeKind
}

// TrackedPath is a context path a binding read, with the value seen at the time.
type TrackedPath struct {
	Segments []string // property names below the context root
	Value    any
	// Method is set when the path ends in a method. Method values are
	// rebuilt on every lookup, so only the receiver path decides staleness.
	Method bool
}

// Binding is an evaluated input binding.
//
// A binding with no tracked paths is static: it is computed once and never
// recomputed.
type Binding struct {
	Raw     string
	Value   any
	Tracked map[string]TrackedPath
}

// Static reports whether the binding depends on no context path.
func (b *Binding) Static() bool {
	return len(b.Tracked) == 0
}

// OutputHandler runs an event binding with the event payload.
type OutputHandler func(event any) (any, error)

// OutputBinding is an event binding. Handler evaluates Raw against the context
// current at the time it fires.
type OutputBinding struct {
	Raw     string
	Handler OutputHandler
}

// ContextRef holds the latest context value so output handlers always observe
// the freshest state.
type ContextRef struct {
	mu    sync.RWMutex
	value any
}

// NewContextRef creates a reference holding v.
func NewContextRef(v any) *ContextRef {
	return &ContextRef{value: v}
}

// Load returns the current context value.
func (r *ContextRef) Load() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Store replaces the context value.
func (r *ContextRef) Store(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}
