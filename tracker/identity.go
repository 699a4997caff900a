package tracker

import (
	"fmt"
	"reflect"
)

// Identity is the registry key of a handle. Two handles have the same Identity
// only if they are the same object, never merely equal.
type Identity struct {
	typ reflect.Type
	ptr uintptr
	val any
}

// IdentityOf returns the reference identity of h. Pointer-like values key on
// their address; any other value falls back to the value itself. Values that
// cannot be map keys, such as structs holding slices, key on their %#v
// rendering instead.
func IdentityOf(h any) Identity {
	if h == nil {
		return Identity{}
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return Identity{typ: v.Type(), ptr: v.Pointer()}
	default:
		if !v.Comparable() {
			return Identity{typ: v.Type(), val: fmt.Sprintf("%#v", h)}
		}
		return Identity{typ: v.Type(), val: h}
	}
}

// IsZero reports whether id belongs to an absent handle.
func (id Identity) IsZero() bool {
	return id.typ == nil
}

// isNil reports whether h is absent: a nil interface or a nil pointer-like
// value stored in one.
func isNil(h any) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
