package javaobs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// streamReader decodes the fixed-width big-endian primitives of the
// stream. Its exported methods are promoted to Decoder so that custom
// serialization hooks can read raw values.
type streamReader struct {
	r   *bufio.Reader
	off int64
	buf [8]byte
}

func newStreamReader(r io.Reader, off int64) streamReader {
	return streamReader{
		r:   bufio.NewReader(r),
		off: off,
	}
}

// Offset returns the number of bytes consumed from the stream so far,
// including the header.
func (s *streamReader) Offset() int64 {
	return s.off
}

func (s *streamReader) fill(n int) ([]byte, error) {
	m, err := io.ReadFull(s.r, s.buf[:n])
	s.off += int64(m)
	if err != nil {
		return nil, wrapIOError("read", s.off, err)
	}
	return s.buf[:n], nil
}

func (s *streamReader) peekByte() (byte, error) {
	p, err := s.r.Peek(1)
	if err != nil {
		return 0, wrapIOError("peek", s.off, err)
	}
	return p[0], nil
}

// ReadByte reads one raw byte.
func (s *streamReader) ReadByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, wrapIOError("read", s.off, err)
	}
	s.off++
	return b, nil
}

func (s *streamReader) ReadBool() (bool, error) {
	b, err := s.ReadByte()
	return b != 0, err
}

// ReadChar reads one UTF-16 code unit.
func (s *streamReader) ReadChar() (uint16, error) {
	return s.ReadUShort()
}

func (s *streamReader) ReadUShort() (uint16, error) {
	p, err := s.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (s *streamReader) ReadShort() (int16, error) {
	v, err := s.ReadUShort()
	return int16(v), err
}

func (s *streamReader) ReadInt() (int32, error) {
	p, err := s.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

func (s *streamReader) ReadLong() (int64, error) {
	p, err := s.fill(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

func (s *streamReader) ReadFloat() (float32, error) {
	v, err := s.ReadInt()
	return math.Float32frombits(uint32(v)), err
}

func (s *streamReader) ReadDouble() (float64, error) {
	v, err := s.ReadLong()
	return math.Float64frombits(uint64(v)), err
}

// ReadFull reads exactly n raw bytes.
func (s *streamReader) ReadFull(n int) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindTruncatedStream, "read", s.off, "negative length %d", n)
	}
	if n <= 1<<16 {
		p := make([]byte, n)
		m, err := io.ReadFull(s.r, p)
		s.off += int64(m)
		if err != nil {
			return nil, wrapIOError("read", s.off, err)
		}
		return p, nil
	}
	// Large lengths come from untrusted headers; grow as data arrives.
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, s.r, int64(n))
	s.off += m
	if err != nil {
		return nil, wrapIOError("read", s.off, err)
	}
	return buf.Bytes(), nil
}

// ReadUTF reads a string with a two-byte length prefix.
func (s *streamReader) ReadUTF() (string, error) {
	l, err := s.ReadUShort()
	if err != nil {
		return "", err
	}
	p, err := s.ReadFull(int(l))
	if err != nil {
		return "", err
	}
	return decodeModifiedUTF8(p), nil
}

func (s *streamReader) readLongUTF() (string, error) {
	l, err := s.ReadLong()
	if err != nil {
		return "", err
	}
	if l < 0 || l > math.MaxInt32 {
		return "", newError(KindTruncatedStream, "read", s.off, "string length %d out of range", l)
	}
	p, err := s.ReadFull(int(l))
	if err != nil {
		return "", err
	}
	return decodeModifiedUTF8(p), nil
}
