package javaobs

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// UID is the opaque 8-byte structural-identity token of a class. It is
// only ever copied from a decoded stream or supplied by the caller.
type UID [8]byte

// UIDFromInt64 returns the wire form of a serialVersionUID value.
func UIDFromInt64(v int64) UID {
	var uid UID
	binary.BigEndian.PutUint64(uid[:], uint64(v))
	return uid
}

// Int64 returns the UID as the signed value a JVM would print.
func (uid UID) Int64() int64 {
	return int64(binary.BigEndian.Uint64(uid[:]))
}

func (uid UID) String() string {
	return hex.EncodeToString(uid[:])
}

// FieldDescriptor describes one serializable field of a class.
type FieldDescriptor struct {
	Name string
	Type PrimitiveType
	// ClassName is the JVM type signature of an object or array field,
	// e.g. "Ljava/lang/String;" or "[I". It is empty for primitives.
	ClassName string
}

// SubtypeName returns the dotted class name of an object field's static
// type, or the signature itself for arrays.
func (f FieldDescriptor) SubtypeName() string {
	sig := f.ClassName
	if len(sig) > 2 && sig[0] == 'L' && sig[len(sig)-1] == ';' {
		return strings.ReplaceAll(sig[1:len(sig)-1], "/", ".")
	}
	return sig
}

// ClassDescriptor is the metadata record that precedes instances of a
// class in the stream.
type ClassDescriptor struct {
	Name       string
	SimpleName string
	UID        UID
	Flags      byte
	Fields     []FieldDescriptor
	Super      *ClassDescriptor
	// ElementType is set for array classes only.
	ElementType PrimitiveType

	binding *Binding
}

// NewClassDescriptor derives the simple name and, for array classes, the
// element type from name.
func NewClassDescriptor(name string, uid UID, flags byte) *ClassDescriptor {
	desc := &ClassDescriptor{
		Name:       name,
		SimpleName: name,
		UID:        uid,
		Flags:      flags,
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		desc.SimpleName = name[i+1:]
	}
	if len(name) > 1 && name[0] == '[' {
		desc.ElementType = PrimitiveType(name[1])
	}
	return desc
}

// AddField appends a field to the descriptor.
func (desc *ClassDescriptor) AddField(field FieldDescriptor) {
	desc.Fields = append(desc.Fields, field)
}

// IsArray reports whether the descriptor names an array class.
func (desc *ClassDescriptor) IsArray() bool {
	return len(desc.Name) > 0 && desc.Name[0] == '['
}

// IsEnum reports whether the descriptor names an enum class.
func (desc *ClassDescriptor) IsEnum() bool {
	return desc.Flags&ScEnum != 0
}

// Binding returns the host type binding attached when the descriptor was
// decoded or first encoded, or nil.
func (desc *ClassDescriptor) Binding() *Binding {
	return desc.binding
}

// Hierarchy returns the descriptor chain with the top-most ancestor
// first and desc last.
func (desc *ClassDescriptor) Hierarchy() []*ClassDescriptor {
	var chain []*ClassDescriptor
	for d := desc; d != nil; d = d.Super {
		chain = append(chain, d)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Field returns the descriptor's own field with the given name.
func (desc *ClassDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range desc.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func (desc *ClassDescriptor) String() string {
	return desc.Name
}
