package javaobs

import (
	"encoding/binary"
	"errors"
	"io"
	"iter"
	"reflect"

	"go.uber.org/zap"
)

// Decoder reads an object graph from a serialization stream. A Decoder
// owns its handle table and is not safe for concurrent use.
type Decoder struct {
	streamReader
	registry *Registry
	handles  *HandleTable
	logger   *zap.Logger
	depth    int

	// The class level a custom hook is currently reading.
	curObject  any
	curClass   *ClassDescriptor
	curBinding *Binding
}

// NewDecoder verifies the stream header and returns a Decoder positioned
// at the first top-level value. A bad magic number fails before the
// version bytes are consumed.
func NewDecoder(r io.Reader, opts ...Option) (*Decoder, error) {
	o := newOptions(opts)
	var header [2]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		return nil, wrapIOError("NewDecoder", int64(n), err)
	}
	if magic := binary.BigEndian.Uint16(header[:]); magic != StreamMagic {
		return nil, newError(KindBadStreamHeader, "NewDecoder", 0, "invalid stream magic 0x%04X", magic)
	}
	n, err = io.ReadFull(r, header[:])
	if err != nil {
		return nil, wrapIOError("NewDecoder", int64(2+n), err)
	}
	if version := int16(binary.BigEndian.Uint16(header[:])); version != StreamVersion {
		return nil, newError(KindBadStreamHeader, "NewDecoder", 2, "unsupported stream version %d", version)
	}
	return &Decoder{
		streamReader: newStreamReader(r, 4),
		registry:     o.registry,
		handles:      NewHandleTable(),
		logger:       o.logger,
	}, nil
}

// Registry returns the type-binding registry of the session.
func (dec *Decoder) Registry() *Registry {
	return dec.registry
}

// Handles returns the session's handle table.
func (dec *Decoder) Handles() *HandleTable {
	return dec.handles
}

// CurrentClass returns the class level a custom hook is reading, or nil
// outside of a hook.
func (dec *Decoder) CurrentClass() *ClassDescriptor {
	return dec.curClass
}

// ReadObject reads the next value. At the top level it returns io.EOF
// once the stream is exhausted; inside a custom hook running out of
// bytes is a TruncatedStream error.
func (dec *Decoder) ReadObject() (any, error) {
	if dec.depth == 0 {
		if _, err := dec.r.Peek(1); errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
	}
	return dec.readObject()
}

// Objects returns the remaining top-level values as a sequence. The
// sequence stops after the first error; it cannot be restarted.
func (dec *Decoder) Objects() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			v, err := dec.ReadObject()
			// A bare io.EOF marks a clean end; truncation wraps it.
			if err == io.EOF {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// ReadObjects reads every remaining top-level value.
func (dec *Decoder) ReadObjects() ([]any, error) {
	var objects []any
	for v, err := range dec.Objects() {
		if err != nil {
			return nil, err
		}
		objects = append(objects, v)
	}
	return objects, nil
}

func (dec *Decoder) readObject() (any, error) {
	dec.depth++
	defer func() { dec.depth-- }()
	off := dec.off
	tc, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tc {
	case TcNull:
		return nil, nil
	case TcReference:
		return dec.readHandle()
	case TcString:
		s, err := dec.ReadUTF()
		if err != nil {
			return nil, err
		}
		return dec.newString(s), nil
	case TcLongstring:
		s, err := dec.readLongUTF()
		if err != nil {
			return nil, err
		}
		return dec.newString(s), nil
	case TcClassdesc:
		return dec.readClassDesc()
	case TcObject:
		return dec.readOrdinaryObject()
	case TcArray:
		return dec.readArray()
	case TcEnum:
		return dec.readEnum()
	case TcClass:
		return dec.readClass()
	default:
		return nil, unexpectedTag("readObject", off, tc)
	}
}

// newString assigns a handle to a string read inline. A string equal to
// one that already holds a handle is a separate object and is returned
// as a *String.
func (dec *Decoder) newString(s string) any {
	if _, ok := dec.handles.Find(s); ok {
		v := &String{Value: s}
		dec.handles.Assign(v)
		return v
	}
	dec.handles.Assign(s)
	return s
}

func (dec *Decoder) readHandle() (any, error) {
	off := dec.off
	handle, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	v, ok := dec.handles.Lookup(handle - baseWireHandle)
	if !ok {
		return nil, newError(KindUnknownReference, "readHandle", off, "invalid handle value 0x%X", handle)
	}
	return v, nil
}

// expect peeks at the next tag and fails unless it is one of tcs.
func (dec *Decoder) expect(op string, tcs ...byte) error {
	tc, err := dec.peekByte()
	if err != nil {
		return err
	}
	for _, want := range tcs {
		if tc == want {
			return nil
		}
	}
	return unexpectedTag(op, dec.off, tc)
}

// readClassDescValue reads a class descriptor, a reference to one, or
// null.
func (dec *Decoder) readClassDescValue(op string) (*ClassDescriptor, error) {
	if err := dec.expect(op, TcClassdesc, TcReference, TcNull); err != nil {
		return nil, err
	}
	off := dec.off
	v, err := dec.readObject()
	if err != nil || v == nil {
		return nil, err
	}
	desc, ok := v.(*ClassDescriptor)
	if !ok {
		return nil, newError(KindUnexpectedTag, op, off, "reference to %T, not a class descriptor", v)
	}
	return desc, nil
}

// readStringValue reads a string or a reference to one.
func (dec *Decoder) readStringValue(op string) (string, error) {
	if err := dec.expect(op, TcString, TcLongstring, TcReference); err != nil {
		return "", err
	}
	off := dec.off
	v, err := dec.readObject()
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case *String:
		return s.Value, nil
	}
	return "", newError(KindUnexpectedTag, op, off, "reference to %T, not a string", v)
}

func (dec *Decoder) readClassDesc() (*ClassDescriptor, error) {
	off := dec.off - 1
	desc := &ClassDescriptor{}
	handle := dec.handles.Assign(desc)

	name, err := dec.ReadUTF()
	if err != nil {
		return nil, err
	}
	p, err := dec.fill(8)
	if err != nil {
		return nil, err
	}
	var uid UID
	copy(uid[:], p)
	flags, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}
	*desc = *NewClassDescriptor(name, uid, flags)

	numFields, err := dec.ReadShort()
	if err != nil {
		return nil, err
	}
	if numFields < 0 {
		return nil, newError(KindUnexpectedTag, "readClassDesc", dec.off, "negative field count %d", numFields)
	}
	desc.Fields = make([]FieldDescriptor, 0, int(numFields))
	for i := 0; i < int(numFields); i++ {
		fieldOff := dec.off
		tcode, err := dec.ReadByte()
		if err != nil {
			return nil, err
		}
		typ := PrimitiveType(tcode)
		if !typ.Valid() {
			return nil, newError(KindUnknownPrimitiveType, "readClassDesc", fieldOff, "field type code 0x%02X in %s", tcode, name)
		}
		fname, err := dec.ReadUTF()
		if err != nil {
			return nil, err
		}
		field := FieldDescriptor{Name: fname, Type: typ}
		if typ.IsReference() {
			if field.ClassName, err = dec.readStringValue("readClassDesc"); err != nil {
				return nil, err
			}
		}
		desc.Fields = append(desc.Fields, field)
	}

	annOff := dec.off
	tc, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}
	if tc != TcEndblockdata {
		return nil, newError(KindAnnotationNotSupported, "readClassDesc", annOff, "class %s carries annotation tag 0x%02X", name, tc)
	}

	super, err := dec.readClassDescValue("readClassDesc")
	if err != nil {
		return nil, err
	}
	for d := super; d != nil; d = d.Super {
		if d == desc {
			return nil, newError(KindUnexpectedTag, "readClassDesc", off, "class %s is its own superclass", name)
		}
	}
	desc.Super = super

	binding := dec.registry.Resolve(desc)
	dec.registry.AddDescriptor(desc)
	dec.logger.Debug("read class descriptor",
		zap.String("class", desc.Name),
		zap.Stringer("uid", desc.UID),
		zap.Uint8("flags", desc.Flags),
		zap.Int("fields", len(desc.Fields)),
		zap.Int32("handle", handle),
		zap.Stringer("capability", binding.Capability),
		zap.Bool("synthesized", binding.Synthesized))
	return desc, nil
}

func (dec *Decoder) bindingOf(desc *ClassDescriptor) *Binding {
	if desc.binding == nil {
		return dec.registry.Resolve(desc)
	}
	return desc.binding
}

func (dec *Decoder) readOrdinaryObject() (any, error) {
	off := dec.off - 1
	desc, err := dec.readClassDescValue("readOrdinaryObject")
	if err != nil {
		return nil, err
	}
	if desc == nil || desc.IsArray() {
		return nil, newError(KindUnexpectedTag, "readOrdinaryObject", off, "object with class %v", desc)
	}
	binding := dec.bindingOf(desc)
	object := binding.New(desc)
	// The handle must exist before the fields are read so that they can
	// refer back to the object.
	dec.handles.Assign(object)
	for _, level := range desc.Hierarchy() {
		if err := dec.readClassData(level, binding, object); err != nil {
			return nil, err
		}
	}
	return object, nil
}

// readClassData reads the data one class level contributed to object.
func (dec *Decoder) readClassData(level *ClassDescriptor, binding *Binding, object any) error {
	if dec.bindingOf(level).Capability == CustomSerialization {
		if custom, ok := object.(CustomSerializer); ok {
			prevObject, prevClass, prevBinding := dec.curObject, dec.curClass, dec.curBinding
			dec.curObject, dec.curClass, dec.curBinding = object, level, binding
			err := custom.ReadCustomData(dec)
			dec.curObject, dec.curClass, dec.curBinding = prevObject, prevClass, prevBinding
			return err
		}
		dec.logger.Debug("custom class level read generically",
			zap.String("class", level.Name),
			zap.String("object", reflect.TypeOf(object).String()))
	}
	if level.Flags&ScExternalizable != 0 {
		if level.Flags&ScBlockData == 0 {
			return newError(KindUnsupported, "readClassData", dec.off, "externalizable class %s without block data", level.Name)
		}
		return dec.readAnnotation(level, object)
	}
	if err := dec.readFields(level, binding, object); err != nil {
		return err
	}
	if level.Flags&ScWriteMethod != 0 {
		return dec.readAnnotation(level, object)
	}
	return nil
}

func (dec *Decoder) readFields(level *ClassDescriptor, binding *Binding, object any) error {
	for _, f := range level.Fields {
		v, err := dec.readValue(f.Type)
		if err != nil {
			return err
		}
		if err := binding.setField(object, level.Name, f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// DefaultReadObject reads the declared fields of the class level the
// running custom hook is responsible for.
func (dec *Decoder) DefaultReadObject() error {
	if dec.curClass == nil {
		return newError(KindUnsupported, "DefaultReadObject", dec.off, "not inside a custom read")
	}
	return dec.readFields(dec.curClass, dec.curBinding, dec.curObject)
}

// readAnnotation collects what a foreign custom writer emitted after the
// default fields, up to and including the end-of-block marker.
func (dec *Decoder) readAnnotation(level *ClassDescriptor, object any) error {
	var items []any
	for {
		tc, err := dec.peekByte()
		if err != nil {
			return err
		}
		if tc == TcEndblockdata {
			if _, err := dec.ReadByte(); err != nil {
				return err
			}
			break
		}
		if tc == TcBlockdata || tc == TcBlockdatalong {
			n, err := dec.ReadBlockStart()
			if err != nil {
				return err
			}
			p, err := dec.ReadFull(n)
			if err != nil {
				return err
			}
			items = append(items, p)
			continue
		}
		v, err := dec.readObject()
		if err != nil {
			return err
		}
		items = append(items, v)
	}
	if record, ok := object.(*Record); ok {
		record.SetAnnotation(level.Name, items)
	} else if len(items) > 0 {
		dec.logger.Debug("dropped class annotation",
			zap.String("class", level.Name),
			zap.Int("items", len(items)))
	}
	return nil
}

// readValue reads one field or array element of type t.
func (dec *Decoder) readValue(t PrimitiveType) (any, error) {
	switch t {
	case PrimByte:
		return dec.ReadByte()
	case PrimChar:
		return dec.ReadChar()
	case PrimDouble:
		return dec.ReadDouble()
	case PrimFloat:
		return dec.ReadFloat()
	case PrimInt:
		return dec.ReadInt()
	case PrimLong:
		return dec.ReadLong()
	case PrimShort:
		return dec.ReadShort()
	case PrimBool:
		return dec.ReadBool()
	case PrimObject, PrimArray:
		return dec.readObject()
	default:
		return nil, newError(KindUnknownPrimitiveType, "readValue", dec.off, "type code 0x%02X", byte(t))
	}
}

func (dec *Decoder) readArray() (any, error) {
	off := dec.off - 1
	desc, err := dec.readClassDescValue("readArray")
	if err != nil {
		return nil, err
	}
	if desc == nil || !desc.IsArray() {
		return nil, newError(KindUnexpectedTag, "readArray", off, "array with class %v", desc)
	}
	elemType, err := elemGoType(desc.ElementType)
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, newError(KindTruncatedStream, "readArray", dec.off, "negative array length %d", n)
	}
	dec.bindingOf(desc)
	// The handle follows the length and precedes the elements.
	array := &Array{
		Class: desc,
		value: reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0),
	}
	dec.handles.Assign(array)

	if desc.ElementType == PrimByte {
		p, err := dec.ReadFull(int(n))
		if err != nil {
			return nil, err
		}
		array.value = reflect.ValueOf(p)
		return array, nil
	}
	elems := reflect.MakeSlice(reflect.SliceOf(elemType), 0, min(int(n), 4096))
	for i := 0; i < int(n); i++ {
		v, err := dec.readValue(desc.ElementType)
		if err != nil {
			return nil, err
		}
		elem := reflect.New(elemType).Elem()
		if err := assignValue(elem, v); err != nil {
			return nil, err
		}
		elems = reflect.Append(elems, elem)
	}
	array.value = elems
	return array, nil
}

func (dec *Decoder) readEnum() (any, error) {
	off := dec.off - 1
	desc, err := dec.readClassDescValue("readEnum")
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, newError(KindUnexpectedTag, "readEnum", off, "enum without class descriptor")
	}
	e := &Enum{Class: desc}
	dec.handles.Assign(e)
	if e.Name, err = dec.readStringValue("readEnum"); err != nil {
		return nil, err
	}
	return e, nil
}

func (dec *Decoder) readClass() (any, error) {
	off := dec.off - 1
	desc, err := dec.readClassDescValue("readClass")
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, newError(KindUnexpectedTag, "readClass", off, "class without descriptor")
	}
	c := &Class{Desc: desc}
	dec.handles.Assign(c)
	return c, nil
}

// ReadBlockStart reads a short or long block-data header and returns the
// length of the block.
func (dec *Decoder) ReadBlockStart() (int, error) {
	off := dec.off
	tc, err := dec.ReadByte()
	if err != nil {
		return 0, err
	}
	switch tc {
	case TcBlockdata:
		n, err := dec.ReadByte()
		return int(n), err
	case TcBlockdatalong:
		n, err := dec.ReadInt()
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, newError(KindTruncatedStream, "ReadBlockStart", off, "negative block length %d", n)
		}
		return int(n), nil
	default:
		return 0, unexpectedTag("ReadBlockStart", off, tc)
	}
}

// ReadBlockEnd consumes the end-of-block marker.
func (dec *Decoder) ReadBlockEnd() error {
	off := dec.off
	tc, err := dec.ReadByte()
	if err != nil {
		return err
	}
	if tc != TcEndblockdata {
		return unexpectedTag("ReadBlockEnd", off, tc)
	}
	return nil
}

// ReadBlockData reads a block header, its payload and the end-of-block
// marker that must follow.
func (dec *Decoder) ReadBlockData() ([]byte, error) {
	n, err := dec.ReadBlockStart()
	if err != nil {
		return nil, err
	}
	p, err := dec.ReadFull(n)
	if err != nil {
		return nil, err
	}
	if err := dec.ReadBlockEnd(); err != nil {
		return nil, err
	}
	return p, nil
}
