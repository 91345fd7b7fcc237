package expr

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Resolve walks property names from data and returns the value found, or
// types.Undefined when any step is missing.
func Resolve(data any, segments []string) any {
	v := data
	for _, seg := range segments {
		v, _ = Lookup(v, seg)
		if types.IsUndefined(v) {
			return v
		}
	}
	return v
}

// Lookup returns property key of v. Maps are indexed by key, structs by field
// name or json tag, and methods are returned as bound functions (method=true).
// Sequences and strings expose "length". Anything missing is types.Undefined.
func Lookup(v any, key string) (value any, method bool) {
	if v == nil || types.IsUndefined(v) {
		return types.Undefined, false
	}

	orig := reflect.ValueOf(v)
	rv := indirect(orig)
	if !rv.IsValid() {
		return types.Undefined, false
	}

	switch rv.Kind() {
	case reflect.Map:
		if mk, ok := mapKey(rv.Type().Key(), key); ok {
			if mv := rv.MapIndex(mk); mv.IsValid() {
				return mv.Interface(), false
			}
		}
	case reflect.Struct:
		if fv, ok := structField(rv, key); ok {
			return fv.Interface(), false
		}
	case reflect.Slice, reflect.Array, reflect.String:
		if key == "length" {
			return seqLen(rv), false
		}
		if idx, err := strconv.Atoi(key); err == nil {
			return indexSequence(rv, idx), false
		}
	}

	if key == "length" && rv.Kind() == reflect.Map {
		return rv.Len(), false
	}

	if m := orig.MethodByName(key); m.IsValid() {
		return m.Interface(), true
	}
	if rv.CanAddr() {
		if m := rv.Addr().MethodByName(key); m.IsValid() {
			return m.Interface(), true
		}
	}
	return types.Undefined, false
}

// Index applies a computed key: numbers index sequences, anything else is
// used as a property name.
func Index(v any, key any) any {
	if v == nil || types.IsUndefined(v) {
		return types.Undefined
	}
	if idx, ok := toInt(key); ok {
		rv := indirect(reflect.ValueOf(v))
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.String:
			return indexSequence(rv, idx)
		}
		value, _ := Lookup(v, strconv.Itoa(idx))
		return value
	}
	switch k := key.(type) {
	case string:
		value, _ := Lookup(v, k)
		return value
	case nil:
		value, _ := Lookup(v, "null")
		return value
	case bool:
		value, _ := Lookup(v, strconv.FormatBool(k))
		return value
	}
	if types.IsUndefined(key) {
		value, _ := Lookup(v, "undefined")
		return value
	}
	return types.Undefined
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// indexSequence indexes slices and arrays by element and strings by rune.
func indexSequence(rv reflect.Value, idx int) any {
	if idx < 0 {
		return types.Undefined
	}
	if rv.Kind() == reflect.String {
		n := 0
		for _, r := range rv.String() {
			if n == idx {
				return string(r)
			}
			n++
		}
		return types.Undefined
	}
	if idx >= rv.Len() {
		return types.Undefined
	}
	return rv.Index(idx).Interface()
}

func seqLen(rv reflect.Value) int {
	if rv.Kind() == reflect.String {
		return utf8.RuneCountInString(rv.String())
	}
	return rv.Len()
}

func mapKey(keyType reflect.Type, key string) (reflect.Value, bool) {
	switch keyType.Kind() {
	case reflect.String:
		return reflect.ValueOf(key).Convert(keyType), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(keyType), true
	case reflect.Interface:
		if reflect.TypeOf(key).Implements(keyType) {
			return reflect.ValueOf(key), true
		}
	}
	return reflect.Value{}, false
}

func structField(rv reflect.Value, key string) (reflect.Value, bool) {
	t := rv.Type()
	if sf, ok := t.FieldByName(key); ok && sf.IsExported() {
		if fv, err := rv.FieldByIndexErr(sf.Index); err == nil {
			return fv, true
		}
		return reflect.Value{}, false
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == key {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// toInt converts integral numbers (including float64 values without fraction).
func toInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}
