// Package tree turns a decoded object graph into plain maps and slices
// that YAML, JSON and CBOR encoders can render. Shared and cyclic values
// are emitted once; later occurrences become {"$ref": handle}.
package tree

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"

	javaobs "github.com/lujjjh/go-javaobs"
)

// Builder converts values read by one decoding session. Handles from
// the session label shared values; values the session never saw are
// numbered after them.
type Builder struct {
	handles *javaobs.HandleTable
	seen    map[any]int64
	next    int64
}

// NewBuilder returns a Builder labelling values with handles from t,
// which may be nil.
func NewBuilder(t *javaobs.HandleTable) *Builder {
	b := &Builder{
		handles: t,
		seen:    make(map[any]int64),
	}
	if t != nil {
		b.next = int64(t.Len())
	}
	return b
}

// Build converts each top-level value.
func (b *Builder) Build(objects []any) []any {
	out := make([]any, 0, len(objects))
	for _, v := range objects {
		out = append(out, b.Value(v))
	}
	return out
}

// label returns the id of a shared value and whether it was already
// emitted.
func (b *Builder) label(v any) (int64, bool) {
	key := reflect.ValueOf(v).Pointer()
	k := [2]any{reflect.TypeOf(v), key}
	if id, ok := b.seen[k]; ok {
		return id, true
	}
	var id int64
	if h, ok := b.handlesFind(v); ok {
		id = int64(h)
	} else {
		id = b.next
		b.next++
	}
	b.seen[k] = id
	return id, false
}

func (b *Builder) handlesFind(v any) (int32, bool) {
	if b.handles == nil {
		return 0, false
	}
	return b.handles.Find(v)
}

func ref(id int64) map[string]any {
	return map[string]any{"$ref": id}
}

// Value converts one value.
func (b *Builder) Value(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string, bool, int8, int16, int32, int64, int, uint8, uint16, uint32, uint64:
		return v
	case float32:
		return finite(float64(v))
	case float64:
		return finite(v)
	case []byte:
		return v
	case *javaobs.String:
		return v.Value
	case *javaobs.ClassDescriptor:
		return Descriptor(v)
	case *javaobs.Record:
		id, done := b.label(v)
		if done {
			return ref(id)
		}
		node := map[string]any{"$class": v.ClassName(), "$handle": id}
		fields := make(map[string]any)
		annotations := make(map[string]any)
		if v.Class != nil {
			for _, level := range v.Class.Hierarchy() {
				for _, f := range level.Fields {
					fields[f.Name] = b.Value(v.GetIn(level.Name, f.Name))
				}
				if items := v.Annotation(level.Name); len(items) > 0 {
					annotations[level.Name] = b.Build(items)
				}
			}
		}
		node["fields"] = fields
		if len(annotations) > 0 {
			node["annotations"] = annotations
		}
		return node
	case *javaobs.Array:
		id, done := b.label(v)
		if done {
			return ref(id)
		}
		node := map[string]any{"$class": v.ClassName(), "$handle": id}
		if p, ok := v.Interface().([]byte); ok {
			node["elements"] = p
			return node
		}
		elems := make([]any, v.Len())
		for i := range elems {
			elems[i] = b.Value(v.Index(i))
		}
		node["elements"] = elems
		return node
	case *javaobs.Enum:
		id, done := b.label(v)
		if done {
			return ref(id)
		}
		return map[string]any{"$enum": v.String(), "$handle": id}
	case *javaobs.Class:
		id, done := b.label(v)
		if done {
			return ref(id)
		}
		name := ""
		if v.Desc != nil {
			name = v.Desc.Name
		}
		return map[string]any{"$classObject": name, "$handle": id}
	case encoding.TextMarshaler:
		if text, err := v.MarshalText(); err == nil {
			return string(text)
		}
	}
	return b.reflectValue(reflect.ValueOf(v))
}

func (b *Builder) reflectValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		if rv.Elem().Kind() != reflect.Struct {
			return b.Value(rv.Elem().Interface())
		}
		v := rv.Interface()
		id, done := b.label(v)
		if done {
			return ref(id)
		}
		node := b.structFields(rv.Elem())
		node["$handle"] = id
		if namer, ok := v.(javaobs.ClassNamer); ok {
			node["$class"] = namer.ClassName()
		} else {
			node["$class"] = rv.Elem().Type().String()
		}
		return node
	case reflect.Struct:
		return b.structFields(rv)
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = b.Value(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = b.Value(iter.Value().Interface())
		}
		return out
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return b.Value(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return fmt.Sprint(rv.Interface())
}

func (b *Builder) structFields(rv reflect.Value) map[string]any {
	out := make(map[string]any)
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		out[f.Name] = b.Value(rv.FieldByIndex(f.Index).Interface())
	}
	return out
}

// finite renders NaN and the infinities as strings, which JSON cannot
// represent as numbers.
func finite(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// Descriptor renders a class descriptor and its superclass chain.
func Descriptor(desc *javaobs.ClassDescriptor) map[string]any {
	node := map[string]any{
		"$descriptor": desc.Name,
		"uid":         hex.EncodeToString(desc.UID[:]),
		"flags":       desc.Flags,
	}
	if len(desc.Fields) > 0 {
		fields := make([]any, 0, len(desc.Fields))
		for _, f := range desc.Fields {
			field := map[string]any{"name": f.Name, "type": f.Type.String()}
			if f.ClassName != "" {
				field["class"] = f.ClassName
			}
			fields = append(fields, field)
		}
		node["fields"] = fields
	}
	if desc.Super != nil {
		node["super"] = Descriptor(desc.Super)
	}
	return node
}
