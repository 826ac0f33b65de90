package javaobs

import (
	"io"
	"math"
	"reflect"

	"go.uber.org/zap"
)

// Encoder writes an object graph as a serialization stream, assigning
// handles in the same order a Decoder does so that shared values become
// back-references at the same points. An Encoder is not safe for
// concurrent use.
type Encoder struct {
	streamWriter
	registry *Registry
	handles  *HandleTable
	logger   *zap.Logger
	classes  map[string]*ClassDescriptor
	depth    int

	// The class level a custom hook is currently writing.
	curObject  any
	curClass   *ClassDescriptor
	curBinding *Binding
}

// NewEncoder writes the stream header to w.
func NewEncoder(w io.Writer, opts ...Option) (*Encoder, error) {
	o := newOptions(opts)
	enc := &Encoder{
		streamWriter: newStreamWriter(w),
		registry:     o.registry,
		handles:      NewHandleTable(),
		logger:       o.logger,
		classes:      make(map[string]*ClassDescriptor),
	}
	if err := enc.writeHeader(); err != nil {
		return nil, err
	}
	return enc, nil
}

func (enc *Encoder) writeHeader() error {
	if err := enc.WriteUShort(StreamMagic); err != nil {
		return err
	}
	if err := enc.WriteShort(StreamVersion); err != nil {
		return err
	}
	return enc.Flush()
}

// Registry returns the type-binding registry of the session.
func (enc *Encoder) Registry() *Registry {
	return enc.registry
}

// Handles returns the session's handle table.
func (enc *Encoder) Handles() *HandleTable {
	return enc.handles
}

// CurrentClass returns the class level a custom hook is writing, or nil
// outside of a hook.
func (enc *Encoder) CurrentClass() *ClassDescriptor {
	return enc.curClass
}

// WriteObject writes one value. Top-level calls flush the output.
func (enc *Encoder) WriteObject(object any) error {
	enc.depth++
	err := enc.writeObject(object)
	enc.depth--
	if err == nil && enc.depth == 0 {
		err = enc.Flush()
	}
	return err
}

// WriteObjects writes each value as a top-level object.
func (enc *Encoder) WriteObjects(objects []any) error {
	for _, object := range objects {
		if err := enc.WriteObject(object); err != nil {
			return err
		}
	}
	return nil
}

func isNil(object any) bool {
	if object == nil {
		return true
	}
	v := reflect.ValueOf(object)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (enc *Encoder) writeObject(object any) error {
	if isNil(object) {
		return enc.WriteByte(TcNull)
	}
	if handle, ok := enc.handles.Find(object); ok {
		return enc.writeReference(handle)
	}
	switch v := object.(type) {
	case string:
		return enc.writeString(v, v)
	case *String:
		return enc.writeString(v.Value, v)
	case *ClassDescriptor:
		return enc.writeClassDesc(v)
	case *Array:
		return enc.writeArray(v.Class, v, v.value)
	case *Enum:
		return enc.writeEnum(v)
	case *Class:
		return enc.writeClass(v)
	case *Record:
		return enc.writeOrdinaryObject(v.Class, v)
	}
	if value := reflect.ValueOf(object); value.Kind() == reflect.Slice {
		sig, ok := arraySignature(value.Type())
		if !ok {
			return newError(KindUnboundType, "writeObject", -1, "no array class for %T", object)
		}
		desc, err := enc.descriptorFor(sig)
		if err != nil {
			return err
		}
		return enc.writeArray(desc, object, value)
	}
	desc, err := enc.classFor(object)
	if err != nil {
		return err
	}
	return enc.writeOrdinaryObject(desc, object)
}

func (enc *Encoder) writeReference(handle int32) error {
	if err := enc.WriteByte(TcReference); err != nil {
		return err
	}
	return enc.WriteInt(baseWireHandle + handle)
}

// writeString writes s inline and gives object, either s itself or the
// *String holding it, the next handle.
func (enc *Encoder) writeString(s string, object any) error {
	p := encodeModifiedUTF8(s)
	if len(p) <= math.MaxUint16 {
		if err := enc.WriteByte(TcString); err != nil {
			return err
		}
		enc.handles.Assign(object)
		if err := enc.WriteUShort(uint16(len(p))); err != nil {
			return err
		}
		return enc.write(p)
	}
	if err := enc.WriteByte(TcLongstring); err != nil {
		return err
	}
	enc.handles.Assign(object)
	return enc.writeLongUTF(p)
}

// writeClassDescValue writes desc inline, as a reference, or as null.
func (enc *Encoder) writeClassDescValue(desc *ClassDescriptor) error {
	if desc == nil {
		return enc.WriteByte(TcNull)
	}
	return enc.writeObject(desc)
}

func (enc *Encoder) writeClassDesc(desc *ClassDescriptor) error {
	if err := enc.WriteByte(TcClassdesc); err != nil {
		return err
	}
	handle := enc.handles.Assign(desc)
	if _, ok := enc.classes[desc.Name]; !ok {
		enc.classes[desc.Name] = desc
	}
	enc.logger.Debug("write class descriptor",
		zap.String("class", desc.Name),
		zap.Stringer("uid", desc.UID),
		zap.Int32("handle", handle))

	if err := enc.WriteUTF(desc.Name); err != nil {
		return err
	}
	if err := enc.write(desc.UID[:]); err != nil {
		return err
	}
	if err := enc.WriteByte(desc.Flags); err != nil {
		return err
	}
	if len(desc.Fields) > math.MaxInt16 {
		return newError(KindUnsupported, "writeClassDesc", -1, "class %s has %d fields", desc.Name, len(desc.Fields))
	}
	if err := enc.WriteShort(int16(len(desc.Fields))); err != nil {
		return err
	}
	for _, f := range desc.Fields {
		if !f.Type.Valid() {
			return newError(KindUnknownPrimitiveType, "writeClassDesc", -1, "field %s.%s has type code 0x%02X", desc.Name, f.Name, byte(f.Type))
		}
		if err := enc.WriteByte(byte(f.Type)); err != nil {
			return err
		}
		if err := enc.WriteUTF(f.Name); err != nil {
			return err
		}
		if f.Type.IsReference() {
			if f.ClassName == "" {
				return newError(KindUnboundType, "writeClassDesc", -1, "field %s.%s has no type signature", desc.Name, f.Name)
			}
			if err := enc.writeObject(f.ClassName); err != nil {
				return err
			}
		}
	}
	// Class annotations are never produced.
	if err := enc.WriteByte(TcEndblockdata); err != nil {
		return err
	}
	return enc.writeClassDescValue(desc.Super)
}

// descriptorFor returns the descriptor for name used earlier in this
// session, or the one the registry learned or was given.
func (enc *Encoder) descriptorFor(name string) (*ClassDescriptor, error) {
	if desc, ok := enc.classes[name]; ok {
		return desc, nil
	}
	desc, ok := enc.registry.Descriptor(name)
	if !ok {
		return nil, newError(KindUnboundType, "descriptorFor", -1, "no class descriptor known for %s", name)
	}
	return desc, nil
}

func (enc *Encoder) classFor(object any) (*ClassDescriptor, error) {
	name := className(object)
	if name == "" {
		if b, ok := enc.registry.BindingFor(object); ok {
			name = b.Name
		}
	}
	if name == "" {
		return nil, newError(KindUnboundType, "classFor", -1, "no class bound to %T", object)
	}
	return enc.descriptorFor(name)
}

// bindingOf looks desc's binding up by name. Descriptors may be shared
// with other sessions, so the binding is never cached on them here.
func (enc *Encoder) bindingOf(desc *ClassDescriptor) *Binding {
	return enc.registry.binding(desc)
}

// objectBinding returns the binding used to access object's fields.
func (enc *Encoder) objectBinding(desc *ClassDescriptor, object any) *Binding {
	if _, ok := object.(*Record); ok {
		return enc.bindingOf(desc)
	}
	typ := reflect.TypeOf(object)
	if b, ok := enc.registry.bindingForType(typ); ok {
		return b
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return &Binding{Name: desc.Name, Type: typ, fields: structFields(typ)}
}

func (enc *Encoder) writeOrdinaryObject(desc *ClassDescriptor, object any) error {
	if desc == nil {
		return newError(KindUnboundType, "writeOrdinaryObject", -1, "%T has no class descriptor", object)
	}
	if err := enc.WriteByte(TcObject); err != nil {
		return err
	}
	if err := enc.writeClassDescValue(desc); err != nil {
		return err
	}
	enc.handles.Assign(object)
	binding := enc.objectBinding(desc, object)
	for _, level := range desc.Hierarchy() {
		if err := enc.writeClassData(level, binding, object); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) writeClassData(level *ClassDescriptor, binding *Binding, object any) error {
	if enc.bindingOf(level).Capability == CustomSerialization {
		if custom, ok := object.(CustomSerializer); ok {
			prevObject, prevClass, prevBinding := enc.curObject, enc.curClass, enc.curBinding
			enc.curObject, enc.curClass, enc.curBinding = object, level, binding
			err := custom.WriteCustomData(enc)
			enc.curObject, enc.curClass, enc.curBinding = prevObject, prevClass, prevBinding
			return err
		}
	}
	if level.Flags&ScExternalizable != 0 {
		if level.Flags&ScBlockData == 0 {
			return newError(KindUnsupported, "writeClassData", -1, "externalizable class %s without block data", level.Name)
		}
		return enc.writeAnnotation(level, object)
	}
	if err := enc.writeFields(level, binding, object); err != nil {
		return err
	}
	if level.Flags&ScWriteMethod != 0 {
		return enc.writeAnnotation(level, object)
	}
	return nil
}

func (enc *Encoder) writeFields(level *ClassDescriptor, binding *Binding, object any) error {
	for _, f := range level.Fields {
		if err := enc.writeValue(f.Type, binding.getField(object, level.Name, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

// DefaultWriteObject writes the declared fields of the class level the
// running custom hook is responsible for.
func (enc *Encoder) DefaultWriteObject() error {
	if enc.curClass == nil {
		return newError(KindUnsupported, "DefaultWriteObject", -1, "not inside a custom write")
	}
	return enc.writeFields(enc.curClass, enc.curBinding, enc.curObject)
}

// writeAnnotation replays the block data and objects captured for a
// record's class level, then the end-of-block marker. Other host types
// get an empty annotation.
func (enc *Encoder) writeAnnotation(level *ClassDescriptor, object any) error {
	if record, ok := object.(*Record); ok {
		for _, item := range record.Annotation(level.Name) {
			if p, ok := item.([]byte); ok {
				if err := enc.WriteBlockStart(len(p)); err != nil {
					return err
				}
				if err := enc.write(p); err != nil {
					return err
				}
				continue
			}
			if err := enc.writeObject(item); err != nil {
				return err
			}
		}
	}
	return enc.WriteBlockEnd()
}

// writeValue writes one field or array element of type t.
func (enc *Encoder) writeValue(t PrimitiveType, v any) error {
	switch t {
	case PrimFloat:
		if f, ok := v.(float32); ok {
			return enc.WriteFloat(f)
		}
		f, err := toFloat64(v)
		if err != nil {
			return newError(KindUnsupported, "writeValue", -1, "%v value: %v", t, err)
		}
		return enc.WriteFloat(float32(f))
	case PrimDouble:
		if f, ok := v.(float64); ok {
			return enc.WriteDouble(f)
		}
		f, err := toFloat64(v)
		if err != nil {
			return newError(KindUnsupported, "writeValue", -1, "%v value: %v", t, err)
		}
		return enc.WriteDouble(f)
	case PrimBool:
		b, err := toBool(v)
		if err != nil {
			return newError(KindUnsupported, "writeValue", -1, "%v value: %v", t, err)
		}
		return enc.WriteBool(b)
	case PrimObject, PrimArray:
		return enc.writeObject(v)
	case PrimByte, PrimChar, PrimInt, PrimLong, PrimShort:
		n, err := toInt64(v)
		if err != nil {
			return newError(KindUnsupported, "writeValue", -1, "%v value: %v", t, err)
		}
		switch t {
		case PrimByte:
			return enc.WriteByte(byte(n))
		case PrimChar:
			return enc.WriteChar(uint16(n))
		case PrimInt:
			return enc.WriteInt(int32(n))
		case PrimLong:
			return enc.WriteLong(n)
		default:
			return enc.WriteShort(int16(n))
		}
	default:
		return newError(KindUnknownPrimitiveType, "writeValue", -1, "type code 0x%02X", byte(t))
	}
}

func (enc *Encoder) writeArray(desc *ClassDescriptor, object any, value reflect.Value) error {
	if desc == nil || !desc.IsArray() {
		return newError(KindUnboundType, "writeArray", -1, "%T has no array class descriptor", object)
	}
	if err := enc.WriteByte(TcArray); err != nil {
		return err
	}
	if err := enc.writeClassDescValue(desc); err != nil {
		return err
	}
	enc.handles.Assign(object)
	n := 0
	if value.IsValid() {
		n = value.Len()
	}
	if n > math.MaxInt32 {
		return newError(KindUnsupported, "writeArray", -1, "array of %d elements", n)
	}
	if err := enc.WriteInt(int32(n)); err != nil {
		return err
	}
	if n > 0 && desc.ElementType == PrimByte && value.Type().Elem().Kind() == reflect.Uint8 {
		return enc.write(value.Bytes())
	}
	for i := 0; i < n; i++ {
		if err := enc.writeValue(desc.ElementType, value.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) writeEnum(e *Enum) error {
	if e.Class == nil {
		return newError(KindUnboundType, "writeEnum", -1, "enum constant %s has no class descriptor", e.Name)
	}
	if err := enc.WriteByte(TcEnum); err != nil {
		return err
	}
	if err := enc.writeClassDescValue(e.Class); err != nil {
		return err
	}
	enc.handles.Assign(e)
	// The constant name is always written inline.
	return enc.writeString(e.Name, e.Name)
}

func (enc *Encoder) writeClass(c *Class) error {
	if c.Desc == nil {
		return newError(KindUnboundType, "writeClass", -1, "class object without descriptor")
	}
	if err := enc.WriteByte(TcClass); err != nil {
		return err
	}
	if err := enc.writeClassDescValue(c.Desc); err != nil {
		return err
	}
	enc.handles.Assign(c)
	return nil
}

// WriteBlockStart writes a block-data header for n bytes, using the long
// form above 255.
func (enc *Encoder) WriteBlockStart(n int) error {
	if n <= 0xFF {
		if err := enc.WriteByte(TcBlockdata); err != nil {
			return err
		}
		return enc.WriteByte(byte(n))
	}
	if err := enc.WriteByte(TcBlockdatalong); err != nil {
		return err
	}
	return enc.WriteInt(int32(n))
}

// WriteBlockEnd writes the end-of-block marker.
func (enc *Encoder) WriteBlockEnd() error {
	return enc.WriteByte(TcEndblockdata)
}

// WriteBlockData writes p as one block followed by the end-of-block
// marker.
func (enc *Encoder) WriteBlockData(p []byte) error {
	if err := enc.WriteBlockStart(len(p)); err != nil {
		return err
	}
	if err := enc.write(p); err != nil {
		return err
	}
	return enc.WriteBlockEnd()
}
