package javautil

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	javaobs "github.com/lujjjh/go-javaobs"
)

type stream struct{ bytes.Buffer }

func newStream() *stream {
	s := &stream{}
	s.Write([]byte{0xAC, 0xED, 0x00, 0x05})
	return s
}

func (s *stream) u8(v ...byte) *stream { s.Write(v); return s }

func (s *stream) i32(v int32) *stream {
	s.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
	return s
}

func (s *stream) i64(v int64) *stream {
	s.Write(binary.BigEndian.AppendUint64(nil, uint64(v)))
	return s
}

func (s *stream) utf(v string) *stream {
	s.Write(binary.BigEndian.AppendUint16(nil, uint16(len(v))))
	s.WriteString(v)
	return s
}

func (s *stream) str(v string) *stream { return s.u8(javaobs.TcString).utf(v) }

func dateStream(millis int64) []byte {
	return newStream().
		u8(javaobs.TcObject, javaobs.TcClassdesc).utf(DateClass).i64(DateUID).
		u8(javaobs.ScSerializable|javaobs.ScWriteMethod, 0, 0, javaobs.TcEndblockdata, javaobs.TcNull).
		u8(javaobs.TcBlockdata, 8).i64(millis).u8(javaobs.TcEndblockdata).
		Bytes()
}

// hashMapStream is {"k": "v", "n": null} with the JDK's default sizing.
func hashMapStream() []byte {
	return newStream().
		u8(javaobs.TcObject, javaobs.TcClassdesc).utf(HashMapClass).i64(HashMapUID).
		u8(javaobs.ScSerializable|javaobs.ScWriteMethod, 0, 2).
		u8('F').utf("loadFactor").
		u8('I').utf("threshold").
		u8(javaobs.TcEndblockdata, javaobs.TcNull).
		i32(int32(math.Float32bits(0.75))).i32(12).
		u8(javaobs.TcBlockdata, 8).i32(16).i32(2).
		str("k").str("v").
		str("n").u8(javaobs.TcNull).
		u8(javaobs.TcEndblockdata).
		Bytes()
}

func roundTrip(t *testing.T, reg *javaobs.Registry, data []byte) any {
	t.Helper()
	dec, err := javaobs.NewDecoder(bytes.NewReader(data), javaobs.WithRegistry(reg))
	require.NoError(t, err)
	objects, err := dec.ReadObjects()
	require.NoError(t, err)
	require.Len(t, objects, 1)

	var buf bytes.Buffer
	enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, enc.WriteObjects(objects))
	assert.Equal(t, data, buf.Bytes())
	return objects[0]
}

func newRegistry(t *testing.T) *javaobs.Registry {
	t.Helper()
	reg := javaobs.NewRegistry()
	require.NoError(t, Register(reg))
	return reg
}

func TestDate(t *testing.T) {
	reg := newRegistry(t)
	v := roundTrip(t, reg, dateStream(1700000000123))

	d, ok := v.(*Date)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, int64(1700000000123), d.Time.UnixMilli())
	assert.Equal(t, time.UTC, d.Time.Location())
}

func TestDate_Encode(t *testing.T) {
	reg := newRegistry(t)
	var buf bytes.Buffer
	enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg))
	require.NoError(t, err)

	d := NewDate(time.UnixMilli(-5).Add(700 * time.Microsecond))
	require.NoError(t, enc.WriteObject(d))
	assert.Equal(t, dateStream(-5), buf.Bytes())
}

func TestDate_BadBlock(t *testing.T) {
	data := newStream().
		u8(javaobs.TcObject, javaobs.TcClassdesc).utf(DateClass).i64(DateUID).
		u8(javaobs.ScSerializable|javaobs.ScWriteMethod, 0, 0, javaobs.TcEndblockdata, javaobs.TcNull).
		u8(javaobs.TcBlockdata, 4).i32(1).u8(javaobs.TcEndblockdata).
		Bytes()
	dec, err := javaobs.NewDecoder(bytes.NewReader(data), javaobs.WithRegistry(newRegistry(t)))
	require.NoError(t, err)
	_, err = dec.ReadObjects()
	assert.ErrorIs(t, err, javaobs.ErrUnsupported)
}

func TestHashMap(t *testing.T) {
	reg := newRegistry(t)
	v := roundTrip(t, reg, hashMapStream())

	m, ok := v.(*HashMap)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, float32(0.75), m.LoadFactor)
	assert.Equal(t, int32(12), m.Threshold)
	assert.Equal(t, int32(16), m.Buckets)

	got, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
	got, ok = m.Get("n")
	assert.True(t, ok)
	assert.Nil(t, got)
	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestHashMap_Encode(t *testing.T) {
	reg := newRegistry(t)
	m := NewHashMap()
	m.Put("k", "old")
	m.Put("n", nil)
	m.Put("k", "v")

	var buf bytes.Buffer
	enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, enc.WriteObject(m))
	assert.Equal(t, hashMapStream(), buf.Bytes())
}

func TestHashMap_Grow(t *testing.T) {
	m := NewHashMap()
	for i := int32(0); i < 12; i++ {
		m.Put(i, i)
	}
	assert.Equal(t, int32(16), m.Buckets)
	m.Put(int32(12), nil)
	assert.Equal(t, int32(32), m.Buckets)
	assert.Equal(t, int32(24), m.Threshold)
	assert.Equal(t, 13, m.Len())

	v, ok := m.Get(int32(3))
	assert.True(t, ok)
	assert.Equal(t, int32(3), v)
}

func TestHashMap_UnhashableKey(t *testing.T) {
	m := NewHashMap()
	m.Put([]int32{1}, "a")
	m.Put([]int32{1}, "b")
	assert.Equal(t, 1, m.Len())
	v, ok := m.Get([]int32{1})
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestHashMap_ConcurrentSessions(t *testing.T) {
	reg := newRegistry(t)
	want := hashMapStream()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := NewHashMap()
			m.Put("k", "v")
			m.Put("n", nil)

			var buf bytes.Buffer
			enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg))
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, enc.WriteObject(m))
			assert.Equal(t, want, buf.Bytes())

			dec, err := javaobs.NewDecoder(bytes.NewReader(want), javaobs.WithRegistry(reg))
			if !assert.NoError(t, err) {
				return
			}
			v, err := dec.ReadObject()
			if assert.NoError(t, err) {
				assert.IsType(t, &HashMap{}, v)
			}
		}()
	}
	wg.Wait()
}

func TestHashMap_SharedValues(t *testing.T) {
	reg := newRegistry(t)
	d := NewDate(time.UnixMilli(0))
	m := NewHashMap()
	m.Put("a", d)
	m.Put("b", d)

	var buf bytes.Buffer
	enc, err := javaobs.NewEncoder(&buf, javaobs.WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, enc.WriteObject(m))

	dec, err := javaobs.NewDecoder(&buf, javaobs.WithRegistry(reg))
	require.NoError(t, err)
	v, err := dec.ReadObject()
	require.NoError(t, err)
	decoded := v.(*HashMap)
	a, _ := decoded.Get("a")
	b, _ := decoded.Get("b")
	assert.Same(t, a.(*Date), b.(*Date))
}
