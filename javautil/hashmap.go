package javautil

import (
	"fmt"
	"reflect"

	javaobs "github.com/lujjjh/go-javaobs"
)

const (
	HashMapClass = "java.util.HashMap"
	HashMapUID   = 362498820763181265

	defaultBuckets    = 16
	defaultLoadFactor = 0.75
)

// Entry is one key/value mapping of a HashMap.
type Entry struct {
	Key   any
	Value any
}

// HashMap is a java.util.HashMap. Entries keep stream order; the bucket
// count read from a stream is written back unchanged.
type HashMap struct {
	LoadFactor float32 `javaobs:"loadFactor"`
	Threshold  int32   `javaobs:"threshold"`
	Buckets    int32   `javaobs:"-"`
	Entries    []Entry `javaobs:"-"`

	index map[any]int
}

// NewHashMap returns an empty map with the JDK's default capacity.
func NewHashMap() *HashMap {
	return &HashMap{
		LoadFactor: defaultLoadFactor,
		Threshold:  int32(defaultBuckets * defaultLoadFactor),
		Buckets:    defaultBuckets,
	}
}

func (m *HashMap) ClassName() string {
	return HashMapClass
}

func (m *HashMap) Len() int {
	return len(m.Entries)
}

// Get returns the value mapped to key.
func (m *HashMap) Get(key any) (any, bool) {
	if i, ok := m.find(key); ok {
		return m.Entries[i].Value, true
	}
	return nil, false
}

// Put maps key to value, replacing an existing mapping in place. The
// bucket count doubles whenever the size exceeds the threshold.
func (m *HashMap) Put(key, value any) {
	if i, ok := m.find(key); ok {
		m.Entries[i].Value = value
		return
	}
	m.Entries = append(m.Entries, Entry{Key: key, Value: value})
	if hashable(key) {
		if m.index == nil {
			m.reindex()
		} else {
			m.index[key] = len(m.Entries) - 1
		}
	}
	m.grow()
}

func (m *HashMap) grow() {
	if m.LoadFactor <= 0 {
		m.LoadFactor = defaultLoadFactor
	}
	if m.Buckets <= 0 {
		m.Buckets = defaultBuckets
		m.Threshold = int32(float32(m.Buckets) * m.LoadFactor)
	}
	for len(m.Entries) > int(m.Threshold) {
		m.Buckets <<= 1
		m.Threshold = int32(float32(m.Buckets) * m.LoadFactor)
	}
}

func (m *HashMap) find(key any) (int, bool) {
	if hashable(key) {
		if m.index == nil {
			m.reindex()
		}
		i, ok := m.index[key]
		return i, ok
	}
	for i, e := range m.Entries {
		if reflect.DeepEqual(e.Key, key) {
			return i, true
		}
	}
	return -1, false
}

func (m *HashMap) reindex() {
	m.index = make(map[any]int, len(m.Entries))
	for i, e := range m.Entries {
		if hashable(e.Key) {
			if _, dup := m.index[e.Key]; !dup {
				m.index[e.Key] = i
			}
		}
	}
}

func hashable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

func (m *HashMap) ReadCustomData(dec *javaobs.Decoder) error {
	if err := dec.DefaultReadObject(); err != nil {
		return err
	}
	n, err := dec.ReadBlockStart()
	if err != nil {
		return err
	}
	if n != 8 {
		return fmt.Errorf("javautil: %s header block of %d bytes: %w", HashMapClass, n, javaobs.ErrUnsupported)
	}
	buckets, err := dec.ReadInt()
	if err != nil {
		return err
	}
	size, err := dec.ReadInt()
	if err != nil {
		return err
	}
	if size < 0 {
		return fmt.Errorf("javautil: %s of size %d: %w", HashMapClass, size, javaobs.ErrUnsupported)
	}
	m.Buckets = buckets
	m.Entries = make([]Entry, 0, min(int(size), 1024))
	m.index = nil
	for i := 0; i < int(size); i++ {
		k, err := dec.ReadObject()
		if err != nil {
			return err
		}
		v, err := dec.ReadObject()
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, Entry{Key: k, Value: v})
	}
	return dec.ReadBlockEnd()
}

func (m *HashMap) WriteCustomData(enc *javaobs.Encoder) error {
	if err := enc.DefaultWriteObject(); err != nil {
		return err
	}
	buckets := m.Buckets
	if buckets <= 0 {
		buckets = defaultBuckets
		for int(float32(buckets)*defaultLoadFactor) < len(m.Entries) {
			buckets <<= 1
		}
	}
	if err := enc.WriteBlockStart(8); err != nil {
		return err
	}
	if err := enc.WriteInt(buckets); err != nil {
		return err
	}
	if err := enc.WriteInt(int32(len(m.Entries))); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := enc.WriteObject(e.Key); err != nil {
			return err
		}
		if err := enc.WriteObject(e.Value); err != nil {
			return err
		}
	}
	return enc.WriteBlockEnd()
}

// HashMapDescriptor returns the class descriptor JDK 1.2 and later write
// for java.util.HashMap.
func HashMapDescriptor() *javaobs.ClassDescriptor {
	desc := javaobs.NewClassDescriptor(HashMapClass, javaobs.UIDFromInt64(HashMapUID), javaobs.ScSerializable|javaobs.ScWriteMethod)
	desc.AddField(javaobs.FieldDescriptor{Name: "loadFactor", Type: javaobs.PrimFloat})
	desc.AddField(javaobs.FieldDescriptor{Name: "threshold", Type: javaobs.PrimInt})
	return desc
}
