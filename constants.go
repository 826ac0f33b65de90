package javaobs

import "fmt"

// The following symbols in `java.io.ObjectStreamConstants` define
// the terminal and constant values expected in a stream.
const (
	StreamMagic      uint16 = 0xaced
	StreamVersion    int16  = 5
	TcNull           byte   = 0x70
	TcReference      byte   = 0x71
	TcClassdesc      byte   = 0x72
	TcObject         byte   = 0x73
	TcString         byte   = 0x74
	TcArray          byte   = 0x75
	TcClass          byte   = 0x76
	TcBlockdata      byte   = 0x77
	TcEndblockdata   byte   = 0x78
	TcReset          byte   = 0x79
	TcBlockdatalong  byte   = 0x7A
	TcException      byte   = 0x7B
	TcLongstring     byte   = 0x7C
	TcProxyclassdesc byte   = 0x7D
	TcEnum           byte   = 0x7E
	baseWireHandle   int32  = 0x7E0000
)

// The flag byte classDescFlags may include values of
const (
	ScWriteMethod    byte = 0x01 // if SC_SERIALIZABLE
	ScBlockData      byte = 0x08 // if SC_EXTERNALIZABLE
	ScSerializable   byte = 0x02
	ScExternalizable byte = 0x04
	ScEnum           byte = 0x10
)

// PrimitiveType is the one-byte type code of a field or array element.
type PrimitiveType byte

const (
	PrimByte   PrimitiveType = 'B'
	PrimChar   PrimitiveType = 'C'
	PrimDouble PrimitiveType = 'D'
	PrimFloat  PrimitiveType = 'F'
	PrimInt    PrimitiveType = 'I'
	PrimLong   PrimitiveType = 'J'
	PrimShort  PrimitiveType = 'S'
	PrimBool   PrimitiveType = 'Z'
	PrimObject PrimitiveType = 'L'
	PrimArray  PrimitiveType = '['
)

// Valid reports whether t is one of the recognized type codes.
func (t PrimitiveType) Valid() bool {
	switch t {
	case PrimByte, PrimChar, PrimDouble, PrimFloat, PrimInt, PrimLong,
		PrimShort, PrimBool, PrimObject, PrimArray:
		return true
	}
	return false
}

// IsReference reports whether values of type t are written as nested
// objects rather than as fixed-width primitives.
func (t PrimitiveType) IsReference() bool {
	return t == PrimObject || t == PrimArray
}

// Size returns the wire width in bytes of a primitive value, or 0 for
// reference types.
func (t PrimitiveType) Size() int {
	switch t {
	case PrimByte, PrimBool:
		return 1
	case PrimChar, PrimShort:
		return 2
	case PrimInt, PrimFloat:
		return 4
	case PrimLong, PrimDouble:
		return 8
	}
	return 0
}

func (t PrimitiveType) String() string {
	switch t {
	case PrimByte:
		return "byte"
	case PrimChar:
		return "char"
	case PrimDouble:
		return "double"
	case PrimFloat:
		return "float"
	case PrimInt:
		return "int"
	case PrimLong:
		return "long"
	case PrimShort:
		return "short"
	case PrimBool:
		return "boolean"
	case PrimObject:
		return "object"
	case PrimArray:
		return "array"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}
