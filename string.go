package javaobs

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"
)

// String is a java.lang.String whose contents repeat those of an earlier,
// distinct string of the same stream. A Decoder returns it instead of a
// plain Go string so that the Encoder writes it inline again; plain Go
// strings are tracked by value and equal ones become references.
type String struct {
	Value string
}

func (*String) ClassName() string {
	return "java.lang.String"
}

func (s *String) String() string {
	return s.Value
}

// Strings in the stream use the JVM's modified UTF-8: U+0000 is encoded
// as C0 80 and supplementary characters as two three-byte surrogates.
// For BMP text without NUL the two encodings are identical. Unpaired
// surrogates are kept in the Go string in their three-byte form, which
// is not valid UTF-8 but survives re-encoding.

func decodeModifiedUTF8(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	units := make([]uint16, 0, len(p))
	for i := 0; i < len(p); {
		b := p[i]
		switch {
		case b < 0x80:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0 && i+1 < len(p) && isContinuation(p[i+1]):
			units = append(units, uint16(b&0x1F)<<6|uint16(p[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0 && i+2 < len(p) && isContinuation(p[i+1]) && isContinuation(p[i+2]):
			units = append(units, uint16(b&0x0F)<<12|uint16(p[i+1]&0x3F)<<6|uint16(p[i+2]&0x3F))
			i += 3
		case b&0xF8 == 0xF0:
			r, size := utf8.DecodeRune(p[i:])
			if r == utf8.RuneError {
				units = append(units, uint16(utf8.RuneError))
			} else {
				r1, r2 := utf16.EncodeRune(r)
				units = append(units, uint16(r1), uint16(r2))
			}
			i += size
		default:
			units = append(units, uint16(utf8.RuneError))
			i++
		}
	}
	return unitsToString(units)
}

func unitsToString(units []uint16) string {
	buf := make([]byte, 0, len(units)*3)
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if !utf16.IsSurrogate(u) {
			buf = utf8.AppendRune(buf, u)
			continue
		}
		if i+1 < len(units) {
			if r := utf16.DecodeRune(u, rune(units[i+1])); r != utf8.RuneError {
				buf = utf8.AppendRune(buf, r)
				i++
				continue
			}
		}
		buf = append(buf, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
	}
	return string(buf)
}

// isSurrogateBytes reports whether s starts with the three-byte form of
// a lone surrogate.
func isSurrogateBytes(s string) bool {
	return len(s) >= 3 && s[0] == 0xED && s[1]&0xE0 == 0xA0 && isContinuation(s[2])
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

func encodeModifiedUTF8(s string) []byte {
	if !needsModifiedUTF8(s) {
		return []byte(s)
	}
	var buf bytes.Buffer
	buf.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 && isSurrogateBytes(s[i:]) {
			appendUnit(&buf, uint16(s[i]&0x0F)<<12|uint16(s[i+1]&0x3F)<<6|uint16(s[i+2]&0x3F))
			i += 3
			continue
		}
		i += size
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			appendUnit(&buf, uint16(r1))
			appendUnit(&buf, uint16(r2))
			continue
		}
		appendUnit(&buf, uint16(r))
	}
	return buf.Bytes()
}

func appendUnit(buf *bytes.Buffer, u uint16) {
	switch {
	case u != 0 && u < 0x80:
		buf.WriteByte(byte(u))
	case u < 0x800:
		buf.WriteByte(0xC0 | byte(u>>6))
		buf.WriteByte(0x80 | byte(u&0x3F))
	default:
		buf.WriteByte(0xE0 | byte(u>>12))
		buf.WriteByte(0x80 | byte(u>>6&0x3F))
		buf.WriteByte(0x80 | byte(u&0x3F))
	}
}

func needsModifiedUTF8(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b == 0 || b >= 0xF0 {
			return true
		}
	}
	return !utf8.ValidString(s)
}
