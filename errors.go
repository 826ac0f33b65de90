package javaobs

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind categorizes a codec error. Every kind is terminal for the stream
// session it occurred in.
type Kind string

const (
	KindBadStreamHeader        Kind = "bad_stream_header"
	KindUnexpectedTag          Kind = "unexpected_tag"
	KindTruncatedStream        Kind = "truncated_stream"
	KindAnnotationNotSupported Kind = "annotation_not_supported"
	KindUnknownReference       Kind = "unknown_reference"
	KindUnknownPrimitiveType   Kind = "unknown_primitive_type"
	KindUnboundType            Kind = "unbound_type"
	KindUnsupported            Kind = "unsupported"
)

// Error is the structured error returned by Decoder and Encoder.
type Error struct {
	Cause  error
	Kind   Kind
	Op     string
	Detail string
	// Offset is the byte position in the stream, or -1 when unknown.
	Offset int64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for use with errors.Is.
var (
	ErrBadStreamHeader        = &Error{Kind: KindBadStreamHeader, Offset: -1}
	ErrUnexpectedTag          = &Error{Kind: KindUnexpectedTag, Offset: -1}
	ErrTruncatedStream        = &Error{Kind: KindTruncatedStream, Offset: -1}
	ErrAnnotationNotSupported = &Error{Kind: KindAnnotationNotSupported, Offset: -1}
	ErrUnknownReference       = &Error{Kind: KindUnknownReference, Offset: -1}
	ErrUnknownPrimitiveType   = &Error{Kind: KindUnknownPrimitiveType, Offset: -1}
	ErrUnboundType            = &Error{Kind: KindUnboundType, Offset: -1}
	ErrUnsupported            = &Error{Kind: KindUnsupported, Offset: -1}
)

func newError(kind Kind, op string, offset int64, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Op:     op,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}

// wrapIOError maps an I/O failure to TruncatedStream when the source ran
// dry, and otherwise keeps the cause.
func wrapIOError(op string, offset int64, err error) error {
	if err == nil {
		return nil
	}
	var codecErr *Error
	if errors.As(err, &codecErr) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindTruncatedStream, Op: op, Offset: offset, Cause: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func unexpectedTag(op string, offset int64, tc byte) *Error {
	return newError(KindUnexpectedTag, op, offset, "tag 0x%02X", tc)
}
