package javaobs

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamWriter_BigEndian(t *testing.T) {
	var buf bytes.Buffer
	w := newStreamWriter(&buf)
	require.NoError(t, w.WriteShort(0x0102))
	require.NoError(t, w.WriteInt(0x03040506))
	require.NoError(t, w.WriteLong(0x0708090A0B0C0D0E))
	require.NoError(t, w.WriteChar(0x00E9))
	require.NoError(t, w.Flush())
	assert.Equal(t, []byte{
		0x01, 0x02,
		0x03, 0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E,
		0x00, 0xE9,
	}, buf.Bytes())
}

func TestStream_PrimitiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := newStreamWriter(&buf)
	require.NoError(t, w.WriteByte(0xFF))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteChar(0xFFFF))
	require.NoError(t, w.WriteShort(math.MinInt16))
	require.NoError(t, w.WriteInt(math.MinInt32))
	require.NoError(t, w.WriteInt(math.MaxInt32))
	require.NoError(t, w.WriteLong(math.MinInt64))
	require.NoError(t, w.WriteLong(math.MaxInt64))
	require.NoError(t, w.WriteFloat(math.Float32frombits(0x7FC00001)))
	require.NoError(t, w.WriteFloat(float32(math.Inf(-1))))
	require.NoError(t, w.WriteDouble(math.Float64frombits(0x7FF8000000000001)))
	require.NoError(t, w.WriteDouble(math.Copysign(0, -1)))
	require.NoError(t, w.WriteUTF("a\x00b"))
	require.NoError(t, w.Flush())

	r := newStreamReader(&buf, 0)
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), b)
	z, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, z)
	c, err := r.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), c)
	s, err := r.ReadShort()
	require.NoError(t, err)
	assert.Equal(t, int16(math.MinInt16), s)
	i, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), i)
	i, err = r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), i)
	j, err := r.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), j)
	j, err = r.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), j)
	f, err := r.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7FC00001), math.Float32bits(f))
	f, err = r.ReadFloat()
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(f), -1))
	d, err := r.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7FF8000000000001), math.Float64bits(d))
	d, err = r.ReadDouble()
	require.NoError(t, err)
	assert.True(t, math.Signbit(d))
	str, err := r.ReadUTF()
	require.NoError(t, err)
	assert.Equal(t, "a\x00b", str)

	assert.Equal(t, int64(1+1+2+2+4+4+8+8+4+4+8+8+2+4), r.Offset())
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestStreamReader_Truncated(t *testing.T) {
	r := newStreamReader(bytes.NewReader([]byte{0x00, 0x01}), 4)
	_, err := r.ReadInt()
	require.ErrorIs(t, err, ErrTruncatedStream)

	var codecErr *Error
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, int64(6), codecErr.Offset)

	r = newStreamReader(bytes.NewReader([]byte{0x00, 0x05, 'a'}), 0)
	_, err = r.ReadUTF()
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestStreamReader_ReadFullLarge(t *testing.T) {
	p := bytes.Repeat([]byte{7}, 1<<17)
	r := newStreamReader(bytes.NewReader(p), 0)
	got, err := r.ReadFull(len(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	r = newStreamReader(bytes.NewReader(p[:10]), 0)
	_, err = r.ReadFull(1 << 20)
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestStreamWriter_UTFTooLong(t *testing.T) {
	var buf bytes.Buffer
	w := newStreamWriter(&buf)
	err := w.WriteUTF(string(bytes.Repeat([]byte{'x'}, 1<<16)))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestStreamReader_LongString(t *testing.T) {
	var buf bytes.Buffer
	w := newStreamWriter(&buf)
	require.NoError(t, w.writeLongUTF([]byte("long")))
	require.NoError(t, w.Flush())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 4, 'l', 'o', 'n', 'g'}, buf.Bytes())

	r := newStreamReader(&buf, 0)
	s, err := r.readLongUTF()
	require.NoError(t, err)
	assert.Equal(t, "long", s)
}
