package respcodec

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrUTF8Encode is returned when non-UTF-8 bytes are written to a
// string-like destination. Most outputs accept arbitrary bytes.
var ErrUTF8Encode = errors.New("attempted to encode non-UTF-8 data to a string destination")

// Output is the destination the encoder writes wire bytes to. Reserve is a
// capacity hint and never fails; stream-backed outputs ignore it.
type Output interface {
	Reserve(n int)
	WriteString(s string) error
	WriteBytes(b []byte) error
}

// Fprintf writes formatted text to an Output.
func Fprintf(o Output, format string, args ...interface{}) error {
	return o.WriteString(fmt.Sprintf(format, args...))
}

// Buffer is a growable in-memory byte Output. The zero value is ready to
// use.
type Buffer struct {
	buf []byte
}

func (b *Buffer) Reserve(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	grown := make([]byte, len(b.buf), len(b.buf)+n)
	copy(grown, b.buf)
	b.buf = grown
}

func (b *Buffer) WriteString(s string) error {
	b.buf = append(b.buf, s...)
	return nil
}

func (b *Buffer) WriteBytes(p []byte) error {
	b.buf = append(b.buf, p...)
	return nil
}

// Bytes returns the accumulated wire bytes. The slice is valid until the
// next write.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

func (b *Buffer) Len() int {
	return len(b.buf)
}

func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// StringBuffer is a growable in-memory text Output. Writing bytes that are
// not valid UTF-8 fails with ErrUTF8Encode. The zero value is ready to use.
type StringBuffer struct {
	sb strings.Builder
}

func (b *StringBuffer) Reserve(n int) {
	b.sb.Grow(n)
}

func (b *StringBuffer) WriteString(s string) error {
	b.sb.WriteString(s)
	return nil
}

func (b *StringBuffer) WriteBytes(p []byte) error {
	if !utf8.Valid(p) {
		return ErrUTF8Encode
	}
	b.sb.Write(p)
	return nil
}

// String returns the accumulated text.
func (b *StringBuffer) String() string {
	return b.sb.String()
}

// WriterOutput adapts an arbitrary io.Writer as an Output. Reserve is a
// no-op and write errors from the underlying stream pass through unchanged.
type WriterOutput struct {
	W io.Writer
}

func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{W: w}
}

func (o *WriterOutput) Reserve(int) {}

func (o *WriterOutput) WriteString(s string) error {
	_, err := io.WriteString(o.W, s)
	return err
}

func (o *WriterOutput) WriteBytes(p []byte) error {
	_, err := o.W.Write(p)
	return err
}
