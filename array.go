package javaobs

import (
	"fmt"
	"reflect"
)

// Array is the sequence type of foreign arrays. Primitive arrays hold a
// typed Go slice ([]int32 for "[I" and so on); object arrays hold []any.
type Array struct {
	Class *ClassDescriptor
	value reflect.Value
}

// NewArray wraps a slice as an instance of the array class desc. The
// slice's element type must match the class's element type.
func NewArray(desc *ClassDescriptor, x any) (*Array, error) {
	value := reflect.ValueOf(x)
	if !value.IsValid() || value.Kind() != reflect.Slice {
		return nil, fmt.Errorf("NewArray: value must be a slice, got %T", x)
	}
	if desc == nil || !desc.IsArray() {
		return nil, fmt.Errorf("NewArray: %v is not an array class", desc)
	}
	want, err := elemGoType(desc.ElementType)
	if err != nil {
		return nil, err
	}
	if value.Type().Elem() != want {
		return nil, fmt.Errorf("NewArray: %s needs []%s, got %T", desc.Name, want, x)
	}
	return &Array{Class: desc, value: value}, nil
}

// newArray returns an empty instance of the array class desc.
func newArray(desc *ClassDescriptor) *Array {
	array := &Array{Class: desc}
	if desc == nil {
		return array
	}
	if elem, err := elemGoType(desc.ElementType); err == nil {
		array.value = reflect.MakeSlice(reflect.SliceOf(elem), 0, 0)
	}
	return array
}

func (array *Array) ClassName() string {
	if array.Class == nil {
		return ""
	}
	return array.Class.Name
}

func (array *Array) Len() int {
	if !array.value.IsValid() {
		return 0
	}
	return array.value.Len()
}

// Index returns element i. Like a slice index it panics when i is out
// of range.
func (array *Array) Index(i int) any {
	if i < 0 || i >= array.Len() {
		panic(fmt.Sprintf("javaobs: index %d out of range for %s of length %d", i, array.ClassName(), array.Len()))
	}
	return array.value.Index(i).Interface()
}

// Set stores v at index i, converting between numeric kinds.
func (array *Array) Set(i int, v any) error {
	if i < 0 || i >= array.Len() {
		return fmt.Errorf("Array.Set: index %d out of range for %s of length %d", i, array.ClassName(), array.Len())
	}
	return assignValue(array.value.Index(i), v)
}

// Interface returns the underlying slice.
func (array *Array) Interface() any {
	if !array.value.IsValid() {
		return nil
	}
	return array.value.Interface()
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func elemGoType(t PrimitiveType) (reflect.Type, error) {
	switch t {
	case PrimByte:
		return reflect.TypeOf(byte(0)), nil
	case PrimChar:
		return reflect.TypeOf(uint16(0)), nil
	case PrimDouble:
		return reflect.TypeOf(float64(0)), nil
	case PrimFloat:
		return reflect.TypeOf(float32(0)), nil
	case PrimInt:
		return reflect.TypeOf(int32(0)), nil
	case PrimLong:
		return reflect.TypeOf(int64(0)), nil
	case PrimShort:
		return reflect.TypeOf(int16(0)), nil
	case PrimBool:
		return reflect.TypeOf(false), nil
	case PrimObject, PrimArray:
		return anyType, nil
	default:
		return nil, newError(KindUnknownPrimitiveType, "array", -1, "element type %v", t)
	}
}

// typeCode maps a Go type to the field type code it is written as.
func typeCode(typ reflect.Type) (PrimitiveType, bool) {
	switch typ.Kind() {
	case reflect.Uint8, reflect.Int8:
		return PrimByte, true
	case reflect.Uint16:
		return PrimChar, true
	case reflect.Float64:
		return PrimDouble, true
	case reflect.Float32:
		return PrimFloat, true
	case reflect.Int32, reflect.Uint32:
		return PrimInt, true
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint:
		return PrimLong, true
	case reflect.Int16:
		return PrimShort, true
	case reflect.Bool:
		return PrimBool, true
	case reflect.Array, reflect.Slice:
		return PrimArray, true
	case reflect.Struct, reflect.String, reflect.Ptr, reflect.Interface, reflect.Map:
		return PrimObject, true
	}
	return 0, false
}

// arraySignature returns the array class name for a primitive Go slice
// type, e.g. "[I" for []int32, or false when the element type has no
// fixed mapping.
func arraySignature(typ reflect.Type) (string, bool) {
	if typ.Kind() != reflect.Slice {
		return "", false
	}
	code, ok := typeCode(typ.Elem())
	if !ok {
		return "", false
	}
	switch code {
	case PrimArray:
		inner, ok := arraySignature(typ.Elem())
		if !ok {
			return "", false
		}
		return "[" + inner, true
	case PrimObject:
		return "", false
	}
	return "[" + string(rune(code)), true
}
