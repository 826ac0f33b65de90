package javaobs

import (
	"bytes"
	"encoding/binary"
)

// streamBuilder assembles serialization streams byte by byte, the way a
// JVM ObjectOutputStream lays them out.
type streamBuilder struct {
	buf bytes.Buffer
}

func newStream() *streamBuilder {
	b := &streamBuilder{}
	return b.u16(0xACED).u16(5)
}

func (b *streamBuilder) u8(v ...byte) *streamBuilder {
	b.buf.Write(v)
	return b
}

func (b *streamBuilder) u16(v uint16) *streamBuilder {
	b.buf.Write(binary.BigEndian.AppendUint16(nil, v))
	return b
}

func (b *streamBuilder) i32(v int32) *streamBuilder {
	b.buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
	return b
}

func (b *streamBuilder) u64(v uint64) *streamBuilder {
	b.buf.Write(binary.BigEndian.AppendUint64(nil, v))
	return b
}

func (b *streamBuilder) utf(s string) *streamBuilder {
	return b.u16(uint16(len(s))).u8([]byte(s)...)
}

func (b *streamBuilder) null() *streamBuilder {
	return b.u8(TcNull)
}

func (b *streamBuilder) str(s string) *streamBuilder {
	return b.u8(TcString).utf(s)
}

func (b *streamBuilder) ref(handle int32) *streamBuilder {
	return b.u8(TcReference).i32(0x7E0000 + handle)
}

func (b *streamBuilder) object() *streamBuilder {
	return b.u8(TcObject)
}

func (b *streamBuilder) endBlock() *streamBuilder {
	return b.u8(TcEndblockdata)
}

// testField is one entry of a field table. For object and array fields
// either sig is written as a new string or sigRef names the handle of an
// earlier one.
type testField struct {
	typ    PrimitiveType
	name   string
	sig    string
	sigRef int32
}

func primField(typ PrimitiveType, name string) testField {
	return testField{typ: typ, name: name, sigRef: -1}
}

func objField(name, sig string) testField {
	return testField{typ: PrimObject, name: name, sig: sig, sigRef: -1}
}

func objFieldRef(name string, handle int32) testField {
	return testField{typ: PrimObject, name: name, sigRef: handle}
}

// desc writes TC_CLASSDESC through the end of the class annotation. The
// caller writes the superclass next.
func (b *streamBuilder) desc(name string, uid uint64, flags byte, fields ...testField) *streamBuilder {
	b.u8(TcClassdesc).utf(name).u64(uid).u8(flags).u16(uint16(len(fields)))
	for _, f := range fields {
		b.u8(byte(f.typ)).utf(f.name)
		if f.typ.IsReference() {
			if f.sigRef >= 0 {
				b.ref(f.sigRef)
			} else {
				b.str(f.sig)
			}
		}
	}
	return b.endBlock()
}

func (b *streamBuilder) bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

const (
	pointUID    = 0x1122334455667788
	intArrayUID = 0x4DBA602676EAB2A5
)

// pointStream is one Point{x=42, y=7} with no superclass.
func pointStream() []byte {
	return newStream().
		object().
		desc("Point", pointUID, ScSerializable, primField(PrimInt, "x"), primField(PrimInt, "y")).
		null().
		i32(42).i32(7).
		bytes()
}

// intArrayStream is one int[] {0, 1, 2}.
func intArrayStream() []byte {
	return newStream().
		u8(TcArray).
		desc("[I", intArrayUID, ScSerializable).
		null().
		i32(3).i32(0).i32(1).i32(2).
		bytes()
}

// sharedStream is a Pair whose fields a and b are the same Point.
// Handles: Pair desc 0, "LPoint;" 1, pair 2, Point desc 3, point 4.
func sharedStream() []byte {
	return newStream().
		object().
		desc("Pair", 0x01, ScSerializable, objField("a", "LPoint;"), objFieldRef("b", 1)).
		null().
		object().
		desc("Point", pointUID, ScSerializable, primField(PrimInt, "x"), primField(PrimInt, "y")).
		null().
		i32(1).i32(2).
		ref(4).
		bytes()
}

// layeredStream is an instance of C extends B extends A with one int
// field per level holding 1, 2 and 3 from the top ancestor down.
func layeredStream() []byte {
	return newStream().
		object().
		desc("com.example.C", 0x0C, ScSerializable, primField(PrimInt, "c")).
		desc("com.example.B", 0x0B, ScSerializable, primField(PrimInt, "b")).
		desc("com.example.A", 0x0A, ScSerializable, primField(PrimInt, "a")).
		null().
		i32(1).i32(2).i32(3).
		bytes()
}
