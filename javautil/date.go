// Package javautil binds a few java.util classes whose instances are
// written by custom writeObject methods.
package javautil

import (
	"encoding/binary"
	"fmt"
	"time"

	javaobs "github.com/lujjjh/go-javaobs"
)

const (
	DateClass = "java.util.Date"
	DateUID   = 7523967970034938905
)

// Date is a java.util.Date. The stream carries milliseconds since the
// epoch, so sub-millisecond precision is lost on write.
type Date struct {
	Time time.Time `javaobs:"-"`
}

// NewDate returns a Date holding t.
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

func (d *Date) ClassName() string {
	return DateClass
}

func (d *Date) ReadCustomData(dec *javaobs.Decoder) error {
	p, err := dec.ReadBlockData()
	if err != nil {
		return err
	}
	if len(p) != 8 {
		return fmt.Errorf("javautil: %s block of %d bytes: %w", DateClass, len(p), javaobs.ErrUnsupported)
	}
	d.Time = time.UnixMilli(int64(binary.BigEndian.Uint64(p))).UTC()
	return nil
}

func (d *Date) WriteCustomData(enc *javaobs.Encoder) error {
	return enc.WriteBlockData(binary.BigEndian.AppendUint64(nil, uint64(d.Time.UnixMilli())))
}

// DateDescriptor returns the class descriptor JDK 1.1 and later write
// for java.util.Date.
func DateDescriptor() *javaobs.ClassDescriptor {
	return javaobs.NewClassDescriptor(DateClass, javaobs.UIDFromInt64(DateUID), javaobs.ScSerializable|javaobs.ScWriteMethod)
}
