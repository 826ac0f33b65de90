package javaobs

import (
	"reflect"
	"unsafe"
)

// HandleTable assigns stream handles for one session. The read side maps
// a handle index to the value materialized for it; the write side maps a
// value's identity to the handle it was given. Handles start at 0, are
// assigned in encounter order and never reused. Nil never gets a handle.
type HandleTable struct {
	values []any
	ids    map[any]int32
}

func NewHandleTable() *HandleTable {
	return &HandleTable{
		ids: make(map[any]int32),
	}
}

// Len returns the number of handles assigned so far.
func (t *HandleTable) Len() int {
	return len(t.values)
}

// Assign gives v the next handle and returns it. Values with an identity
// become findable through Find. Nil is rejected with -1.
func (t *HandleTable) Assign(v any) int32 {
	if v == nil {
		return -1
	}
	h := int32(len(t.values))
	t.values = append(t.values, v)
	if key, ok := identity(v); ok {
		if _, seen := t.ids[key]; !seen {
			t.ids[key] = h
		}
	}
	return h
}

// Lookup returns the value assigned handle h.
func (t *HandleTable) Lookup(h int32) (any, bool) {
	if h < 0 || int(h) >= len(t.values) {
		return nil, false
	}
	return t.values[h], true
}

// Find returns the handle previously assigned to v's identity.
func (t *HandleTable) Find(v any) (int32, bool) {
	key, ok := identity(v)
	if !ok {
		return -1, false
	}
	h, ok := t.ids[key]
	return h, ok
}

// WireHandle converts a handle index to its on-the-wire value.
func WireHandle(h int32) int32 {
	return baseWireHandle + h
}

type refElem struct {
	typ     reflect.Type
	pointer unsafe.Pointer
	len     int
}

// identity returns the key under which v is tracked. Strings are keyed
// by value; pointers, maps and slices by address; other values have no
// identity and are always written inline.
func identity(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		return refElem{typ: rv.Type(), pointer: rv.UnsafePointer()}, true
	case reflect.Slice:
		// Zero-capacity slices may all share one address.
		if rv.IsNil() || rv.Cap() == 0 {
			return nil, false
		}
		return refElem{typ: rv.Type(), pointer: rv.UnsafePointer(), len: rv.Len()}, true
	}
	return nil, false
}
