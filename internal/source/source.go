// Package source opens stream files that may be compressed, detecting
// the compression from the leading magic bytes.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the container a stream was found in.
type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	LZ4  Compression = "lz4"
)

var magics = []struct {
	magic       []byte
	compression Compression
}{
	{[]byte{0x1F, 0x8B}, Gzip},
	{[]byte{0x28, 0xB5, 0x2F, 0xFD}, Zstd},
	{[]byte{0x04, 0x22, 0x4D, 0x18}, LZ4},
}

// Reader yields the decompressed bytes of a stream.
type Reader struct {
	io.Reader
	Compression Compression

	closers []func() error
}

// Close releases the decompressor and the underlying file, if any.
func (r *Reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Sniff reports the compression of a stream starting with p.
func Sniff(p []byte) Compression {
	for _, m := range magics {
		if bytes.HasPrefix(p, m.magic) {
			return m.compression
		}
	}
	return None
}

// NewReader wraps r in the decompressor its leading bytes call for.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	out := &Reader{Compression: Sniff(head)}
	switch out.Compression {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		out.Reader = zr
		out.closers = append(out.closers, zr.Close)
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		out.Reader = zr
		out.closers = append(out.closers, func() error {
			zr.Close()
			return nil
		})
	case LZ4:
		out.Reader = lz4.NewReader(br)
	default:
		out.Reader = br
	}
	return out, nil
}

// Open opens the file at path, or standard input for "-".
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closers = append([]func() error{f.Close}, r.closers...)
	return r, nil
}
