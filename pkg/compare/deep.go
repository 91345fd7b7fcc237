package compare

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// ErrUnserializable is returned for values that have no by-value form:
// channels, complex numbers and unsafe pointers.
var ErrUnserializable = errors.New("value cannot be serialized for comparison")

// DefaultMaxDepth is the traversal depth used when none is configured.
const DefaultMaxDepth = 5

// Markers substituted for values that are not expanded.
const (
	cycleMarker     = "\x00cycle"
	depthMarker     = "\x00depth"
	undefinedMarker = "\x00undefined"
)

// Report describes how a comparison went.
type Report struct {
	DepthHits int   // containers cut off by MaxDepth
	Fallback  bool  // by-value comparison failed; result is by reference
	Err       error // why the fallback happened
}

// Comparer compares binding values by reference or by value.
type Comparer struct {
	ByValue  bool
	MaxDepth int // containers nested deeper are not expanded; <= 0 means no cap
}

// Equal reports whether a and b should be treated as unchanged.
//
// By value, both are flattened into plain trees (cycles cut at the first
// repeat of an ancestor, containers beyond MaxDepth replaced by a marker),
// encoded as msgpack with sorted map keys and compared byte for byte.
func (c Comparer) Equal(a, b any) (bool, Report) {
	same := Same(a, b)
	if !c.ByValue || same {
		return same, Report{}
	}

	var rep Report
	ea, err := c.encode(a, &rep)
	if err == nil {
		var eb []byte
		eb, err = c.encode(b, &rep)
		if err == nil {
			return bytes.Equal(ea, eb), rep
		}
	}

	rep.Fallback = true
	rep.Err = err
	return same, rep
}

// Encode returns the canonical by-value encoding of v.
func (c Comparer) Encode(v any) ([]byte, Report, error) {
	var rep Report
	b, err := c.encode(v, &rep)
	return b, rep, err
}

func (c Comparer) encode(v any, rep *Report) ([]byte, error) {
	d := &decycler{maxDepth: c.MaxDepth}
	tree, err := d.plain(reflect.ValueOf(v), 0)
	rep.DepthHits += d.hits
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encoding comparison tree: %w", err)
	}
	return buf.Bytes(), nil
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// decycler turns arbitrary Go values into trees of nil, bool, int64, uint64,
// float64, string, []any and map[string]any.
type decycler struct {
	maxDepth int
	hits     int
	stack    []reflect.Value // reference-kind ancestors of the current value
}

func (d *decycler) plain(v reflect.Value, depth int) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.CanInterface() && types.IsUndefined(v.Interface()) {
		return undefinedMarker, nil
	}
	if v.Type().Implements(textMarshalerType) && v.CanInterface() && !isNilRef(v) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
		}
		return string(text), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Func:
		if v.IsNil() {
			return nil, nil
		}
		return fmt.Sprintf("\x00func:%x", funcID(v)), nil
	case reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.UnsafePointer:
		return nil, fmt.Errorf("%w: %s", ErrUnserializable, v.Type())
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return d.plain(v.Elem(), depth)
	}

	if isNilRef(v) {
		return nil, nil
	}
	if d.maxDepth > 0 && depth >= d.maxDepth {
		d.hits++
		return depthMarker, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if d.repeats(v) {
			return cycleMarker, nil
		}
		d.stack = append(d.stack, v)
		defer func() { d.stack = d.stack[:len(d.stack)-1] }()
	}

	switch v.Kind() {
	case reflect.Pointer:
		return d.plain(v.Elem(), depth)

	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			elem, err := d.plain(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil

	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem, err := d.plain(iter.Value(), depth+1)
			if err != nil {
				return nil, err
			}
			out[mapKeyString(iter.Key())] = elem
		}
		return out, nil

	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			elem, err := d.plain(v.Field(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[sf.Name] = elem
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnserializable, v.Type())
}

// repeats reports whether v is one of its own ancestors, by identity or by
// equal contents.
func (d *decycler) repeats(v reflect.Value) bool {
	for _, anc := range d.stack {
		if anc.Type() != v.Type() {
			continue
		}
		if anc.Pointer() == v.Pointer() {
			return true
		}
		if anc.CanInterface() && v.CanInterface() && reflect.DeepEqual(anc.Interface(), v.Interface()) {
			return true
		}
	}
	return false
}

func isNilRef(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func mapKeyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}
