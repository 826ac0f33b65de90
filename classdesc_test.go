package javaobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUID(t *testing.T) {
	uid := UIDFromInt64(-1)
	assert.Equal(t, UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, uid)
	assert.Equal(t, int64(-1), uid.Int64())
	assert.Equal(t, "1122334455667788", UIDFromInt64(pointUID).String())
}

func TestNewClassDescriptor(t *testing.T) {
	desc := NewClassDescriptor("com.example.geo.Point", UID{}, ScSerializable)
	assert.Equal(t, "Point", desc.SimpleName)
	assert.False(t, desc.IsArray())
	assert.False(t, desc.IsEnum())
	assert.Nil(t, desc.Binding())

	array := NewClassDescriptor("[Ljava.lang.String;", UID{}, ScSerializable)
	assert.True(t, array.IsArray())
	assert.Equal(t, PrimObject, array.ElementType)

	enum := NewClassDescriptor("Color", UID{}, ScSerializable|ScEnum)
	assert.True(t, enum.IsEnum())
}

func TestClassDescriptor_Fields(t *testing.T) {
	desc := NewClassDescriptor("Pair", UID{}, ScSerializable)
	desc.AddField(FieldDescriptor{Name: "a", Type: PrimObject, ClassName: "Ljava/lang/String;"})
	desc.AddField(FieldDescriptor{Name: "n", Type: PrimInt})

	f, ok := desc.Field("a")
	assert.True(t, ok)
	assert.Equal(t, "java.lang.String", f.SubtypeName())
	_, ok = desc.Field("b")
	assert.False(t, ok)

	assert.Equal(t, "[I", FieldDescriptor{Type: PrimArray, ClassName: "[I"}.SubtypeName())
}

func TestPrimitiveType(t *testing.T) {
	assert.True(t, PrimLong.Valid())
	assert.False(t, PrimitiveType('Q').Valid())
	assert.True(t, PrimArray.IsReference())
	assert.False(t, PrimChar.IsReference())
	assert.Equal(t, 8, PrimDouble.Size())
	assert.Equal(t, 2, PrimChar.Size())
	assert.Equal(t, 0, PrimObject.Size())
	assert.Equal(t, "boolean", PrimBool.String())
	assert.Equal(t, "unknown(0x51)", PrimitiveType('Q').String())
}
