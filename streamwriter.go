package javaobs

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// streamWriter is the mirror of streamReader. Its exported methods are
// promoted to Encoder.
type streamWriter struct {
	w   *bufio.Writer
	err error
	buf [8]byte
}

func newStreamWriter(w io.Writer) streamWriter {
	return streamWriter{w: bufio.NewWriter(w)}
}

// Write writes raw bytes. A failed write poisons the writer; every later
// call returns the same error.
func (s *streamWriter) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

func (s *streamWriter) write(p []byte) error {
	_, err := s.Write(p)
	return err
}

// Flush pushes buffered bytes to the underlying writer.
func (s *streamWriter) Flush() error {
	if s.err != nil {
		return s.err
	}
	if err := s.w.Flush(); err != nil {
		s.err = err
	}
	return s.err
}

func (s *streamWriter) WriteByte(b byte) error {
	s.buf[0] = b
	return s.write(s.buf[:1])
}

func (s *streamWriter) WriteBool(v bool) error {
	if v {
		return s.WriteByte(1)
	}
	return s.WriteByte(0)
}

// WriteChar writes one UTF-16 code unit.
func (s *streamWriter) WriteChar(v uint16) error {
	return s.WriteUShort(v)
}

func (s *streamWriter) WriteUShort(v uint16) error {
	binary.BigEndian.PutUint16(s.buf[:2], v)
	return s.write(s.buf[:2])
}

func (s *streamWriter) WriteShort(v int16) error {
	return s.WriteUShort(uint16(v))
}

func (s *streamWriter) WriteInt(v int32) error {
	binary.BigEndian.PutUint32(s.buf[:4], uint32(v))
	return s.write(s.buf[:4])
}

func (s *streamWriter) WriteLong(v int64) error {
	binary.BigEndian.PutUint64(s.buf[:8], uint64(v))
	return s.write(s.buf[:8])
}

func (s *streamWriter) WriteFloat(v float32) error {
	return s.WriteInt(int32(math.Float32bits(v)))
}

func (s *streamWriter) WriteDouble(v float64) error {
	return s.WriteLong(int64(math.Float64bits(v)))
}

// WriteUTF writes a string with a two-byte length prefix. Strings whose
// encoded form exceeds 65535 bytes cannot be written this way.
func (s *streamWriter) WriteUTF(v string) error {
	p := encodeModifiedUTF8(v)
	if len(p) > math.MaxUint16 {
		return newError(KindUnsupported, "WriteUTF", -1, "string of %d bytes exceeds short length", len(p))
	}
	if err := s.WriteUShort(uint16(len(p))); err != nil {
		return err
	}
	return s.write(p)
}

func (s *streamWriter) writeLongUTF(p []byte) error {
	if err := s.WriteLong(int64(len(p))); err != nil {
		return err
	}
	return s.write(p)
}
