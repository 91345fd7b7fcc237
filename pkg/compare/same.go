// Package compare decides whether a binding value changed between passes,
// either by reference or by value.
package compare

import (
	"reflect"
	"unsafe"
)

// Same reports whether a and b are the same value. Maps, pointers, channels
// and functions compare by identity, slices by backing array and length.
// Comparable values use ==, other values reflect.DeepEqual.
//
// A function's identity is its closure, not its code: two closures built
// from the same literal are different values.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}

	switch ra.Kind() {
	case reflect.Func:
		return funcData(a) == funcData(b)
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}

	if ra.Type().Comparable() {
		if eq, ok := safeEqual(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// safeEqual compares with ==, which panics when an interface field holds a
// non-comparable dynamic value.
func safeEqual(a, b any) (eq, ok bool) {
	defer func() {
		if recover() != nil {
			eq, ok = false, false
		}
	}()
	return a == b, true
}

// funcData returns the data word of an interface holding a func, which
// points at the closure.
func funcData(f any) unsafe.Pointer {
	return (*[2]unsafe.Pointer)(unsafe.Pointer(&f))[1]
}

// funcID identifies the closure held by v.
func funcID(v reflect.Value) uintptr {
	if v.CanInterface() {
		return uintptr(funcData(v.Interface()))
	}
	return v.Pointer()
}
