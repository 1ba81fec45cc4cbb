// Package console provides the fixed-size output buffer handed to commands.
package console

import (
	"fmt"
	"strings"

	"github.com/itohio/bladc/pkg/fault"
)

// DefaultCapacity matches the string size of the BL602 SDK wrappers.
const DefaultCapacity = 64

// LineEnd terminates every console line.
const LineEnd = "\r\n"

// Buffer is a bounded text buffer. A write that does not fit is rejected
// as a whole with an overflow fault; the buffer keeps its earlier content.
type Buffer struct {
	buf []byte
}

// NewBuffer creates a buffer holding at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Printf appends formatted text.
func (b *Buffer) Printf(format string, args ...any) error {
	return b.write(fmt.Sprintf(format, args...))
}

// Println appends s followed by LineEnd.
func (b *Buffer) Println(s string) error {
	return b.write(s + LineEnd)
}

func (b *Buffer) write(s string) error {
	if len(b.buf)+len(s) > cap(b.buf) {
		return fault.Overflow("console_write", fmt.Errorf("%d bytes into %d of %d", len(s), len(b.buf), cap(b.buf)))
	}
	b.buf = append(b.buf, s...)
	return nil
}

// String returns the buffered text.
func (b *Buffer) String() string {
	return string(b.buf)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Lines splits the buffered text into lines without terminators.
func (b *Buffer) Lines() []string {
	text := strings.TrimSuffix(string(b.buf), LineEnd)
	if text == "" {
		return nil
	}
	return strings.Split(text, LineEnd)
}
