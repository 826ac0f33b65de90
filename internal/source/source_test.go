package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = append([]byte{0xAC, 0xED, 0x00, 0x05, 0x74, 0x00, 0x02}, "hi"...)

func compress(t *testing.T, c Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case LZ4:
		w = lz4.NewWriter(&buf)
	default:
		return bytes.Clone(payload)
	}
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNewReader(t *testing.T) {
	for _, c := range []Compression{None, Gzip, Zstd, LZ4} {
		t.Run(string(c), func(t *testing.T) {
			data := compress(t, c)
			assert.Equal(t, c, Sniff(data))

			r, err := NewReader(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, c, r.Compression)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.NoError(t, r.Close())
		})
	}
}

func TestNewReader_Short(t *testing.T) {
	r, err := NewReader(bytes.NewReader([]byte{0xAC}))
	require.NoError(t, err)
	assert.Equal(t, None, r.Compression)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAC}, got)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.ser.zst")
	require.NoError(t, os.WriteFile(path, compress(t, Zstd), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
