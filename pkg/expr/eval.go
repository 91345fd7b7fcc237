// Package expr implements the binding expression language: literals, arrays,
// objects and paths rooted at `context` (or `$event` in event bindings) with
// property access, indexing and calls.
//
// Evaluation records every context path it reads so callers can tell later
// whether re-evaluating an expression could produce a different value.
package expr

import (
	"fmt"
	"reflect"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Options controls what expressions may do.
type Options struct {
	// AllowContext enables context-rooted paths. When false, an expression
	// that mentions `context` evaluates to its own source text.
	AllowContext bool

	// AllowCalls enables call accessors. When false, paths still resolve but
	// any call fails with ErrCallsDisabled.
	AllowCalls bool

	// UnescapeStrings resolves backslash escapes in string literals.
	UnescapeStrings bool
}

// DefaultOptions returns options with every feature enabled.
func DefaultOptions() Options {
	return Options{
		AllowContext:    true,
		AllowCalls:      true,
		UnescapeStrings: true,
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	Value   any
	Tracked map[string]types.TrackedPath // keyed by normalized head path
}

// Evaluator parses and evaluates expressions against a context value.
type Evaluator struct {
	opts  Options
	cache *Cache
}

// New creates an evaluator with its own parse cache.
func New(opts Options) *Evaluator {
	return &Evaluator{
		opts:  opts,
		cache: NewCache(),
	}
}

// Options returns the evaluator's options.
func (e *Evaluator) Options() Options {
	return e.opts
}

// Parse parses src, reusing a cached result when possible.
func (e *Evaluator) Parse(src string) (*Expr, error) {
	if x := e.cache.Get(src); x != nil {
		return x, nil
	}
	x, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e.cache.Set(src, x)
	return x, nil
}

// EvalOption configures a single evaluation.
type EvalOption func(*evalState)

// WithEvent binds `$event` for the evaluation.
func WithEvent(event any) EvalOption {
	return func(st *evalState) {
		st.event = event
	}
}

// Evaluate evaluates src against data.
func (e *Evaluator) Evaluate(src string, data any, opts ...EvalOption) (*Result, error) {
	x, err := e.Parse(src)
	if err != nil {
		return nil, err
	}

	if x.usesContext && !e.opts.AllowContext {
		return &Result{Value: src, Tracked: map[string]types.TrackedPath{}}, nil
	}

	st := &evalState{
		opts:    e.opts,
		data:    data,
		event:   types.Undefined,
		tracked: make(map[string]types.TrackedPath),
	}
	for _, opt := range opts {
		opt(st)
	}
	v, err := st.eval(x.root)
	if err != nil {
		return nil, err
	}
	return &Result{Value: v, Tracked: st.tracked}, nil
}

type evalState struct {
	opts    Options
	data    any
	event   any
	tracked map[string]types.TrackedPath
}

func (st *evalState) eval(n node) (any, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil

	case *stringNode:
		if st.opts.UnescapeStrings {
			return unescape(n.body), nil
		}
		return n.body, nil

	case *arrayNode:
		arr := make([]any, 0, len(n.elems))
		for _, elem := range n.elems {
			v, err := st.eval(elem)
			if err != nil {
				return nil, err
			}
			arr = append(arr, normalize(v))
		}
		return arr, nil

	case *objectNode:
		obj := make(map[string]any, len(n.keys))
		for i, key := range n.keys {
			v, err := st.eval(n.values[i])
			if err != nil {
				return nil, err
			}
			obj[key] = normalize(v)
		}
		return obj, nil

	case *pathNode:
		return st.evalPath(n)
	}
	return nil, fmt.Errorf("unknown expression node %T", n)
}

func (st *evalState) evalPath(p *pathNode) (any, error) {
	var v any
	if p.root == RootContext {
		v = st.data
	} else {
		v = st.event
	}

	receiver := v
	method := false
	for _, seg := range p.head {
		receiver = v
		v, method = Lookup(v, seg)
		if types.IsUndefined(v) {
			method = false
			break
		}
	}

	if p.root == RootContext {
		st.track(p.head, v, method)
		if method {
			st.track(p.head[:len(p.head)-1], receiver, false)
		}
	}

	for _, acc := range p.rest {
		switch acc.kind {
		case accField:
			v, _ = Lookup(v, acc.name)

		case accIndex:
			key, err := st.eval(acc.key)
			if err != nil {
				return nil, err
			}
			v = Index(v, key)

		case accCall:
			if !st.opts.AllowCalls {
				return nil, ErrCallsDisabled
			}
			args := make([]any, 0, len(acc.args))
			for _, a := range acc.args {
				av, err := st.eval(a)
				if err != nil {
					return nil, err
				}
				args = append(args, av)
			}
			out, err := Call(v, args)
			if err != nil {
				return nil, err
			}
			v = out
		}
	}
	return v, nil
}

func (st *evalState) track(segments []string, value any, method bool) {
	key := PathKey(RootContext, segments)
	if _, seen := st.tracked[key]; seen {
		return
	}
	st.tracked[key] = types.TrackedPath{
		Segments: append([]string(nil), segments...),
		Value:    value,
		Method:   method,
	}
}

// normalize turns undefined into null inside composite literals.
func normalize(v any) any {
	if types.IsUndefined(v) {
		return nil
	}
	return v
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Call invokes fn with args, converting arguments to the parameter types.
// A trailing error result is returned as the call's error.
func Call(fn any, args []any) (result any, err error) {
	if fn == nil || types.IsUndefined(fn) {
		return nil, ErrNotCallable
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, fn)
	}
	if rv.IsNil() {
		return nil, ErrNotCallable
	}

	in, err := convertArgs(rv.Type(), args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("call panicked: %v", r)
		}
	}()
	out := rv.Call(in)

	if n := len(out); n > 0 && rv.Type().Out(n-1) == errorType {
		if errV := out[n-1]; !errV.IsNil() {
			return nil, fmt.Errorf("call failed: %w", errV.Interface().(error))
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return types.Undefined, nil
	}
	return out[0].Interface(), nil
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := t.NumIn()
	fixed := numIn
	if t.IsVariadic() {
		fixed = numIn - 1
	} else if len(args) > numIn {
		return nil, fmt.Errorf("too many arguments: got %d, want %d", len(args), numIn)
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = t.In(i)
		} else {
			pt = t.In(numIn - 1).Elem()
		}
		v, err := convertValue(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	for i := len(args); i < fixed; i++ {
		in = append(in, reflect.Zero(t.In(i)))
	}
	return in, nil
}

func convertValue(v any, to reflect.Type) (reflect.Value, error) {
	if v == nil || types.IsUndefined(v) {
		return reflect.Zero(to), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(to) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(to.Kind()) {
		return rv.Convert(to), nil
	}
	if items, ok := v.([]any); ok && to.Kind() == reflect.Slice {
		out := reflect.MakeSlice(to, 0, len(items))
		for _, item := range items {
			ev, err := convertValue(item, to.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, to)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
