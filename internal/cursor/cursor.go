// Package cursor provides bounds-checked, offset-tracked reads over an immutable byte buffer.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read would extend past the end of the buffer.
var ErrTruncated = errors.New("truncated input")

// Error describes a failed read.
type Error struct {
	Offset int // offset of the failed read
	Want   int // bytes requested
	Have   int // bytes available at Offset
}

func (e *Error) Error() string {
	return fmt.Sprintf("truncated input at offset %d: need %d bytes, have %d", e.Offset, e.Want, e.Have)
}

// Is allows Error to match ErrTruncated with errors.Is.
func (e *Error) Is(target error) bool {
	return target == ErrTruncated
}

// Cursor reads fixed-width integers and byte ranges from a buffer it never modifies.
type Cursor struct {
	data   []byte
	offset int
	order  binary.ByteOrder
}

// New creates a big-endian cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{
		data:  data,
		order: binary.BigEndian,
	}
}

// At creates a big-endian cursor positioned at offset.
func At(data []byte, offset int) (*Cursor, error) {
	if offset < 0 || offset > len(data) {
		return nil, &Error{Offset: offset, Want: 0, Have: len(data) - offset}
	}
	return &Cursor{
		data:   data,
		offset: offset,
		order:  binary.BigEndian,
	}, nil
}

// WithOrder returns a copy of the cursor that reads multi-byte integers in order.
func (c *Cursor) WithOrder(order binary.ByteOrder) *Cursor {
	return &Cursor{
		data:   c.data,
		offset: c.offset,
		order:  order,
	}
}

// Seek moves the cursor to an absolute offset within the buffer.
func (c *Cursor) Seek(offset int) error {
	if offset < 0 || offset > len(c.data) {
		return &Error{Offset: offset, Want: 0, Have: len(c.data) - offset}
	}
	c.offset = offset
	return nil
}

// Order returns the byte order used for multi-byte reads.
func (c *Cursor) Order() binary.ByteOrder {
	return c.order
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.offset
}

// Len returns the length of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.offset
}

// need checks that n bytes are available at the current offset.
func (c *Cursor) need(n int) error {
	if n < 0 || n > c.Remaining() {
		return &Error{Offset: c.offset, Want: n, Have: c.Remaining()}
	}
	return nil
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.offset]
	c.offset++
	return v, nil
}

// ReadU16 reads a 16-bit integer.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.data[c.offset:])
	c.offset += 2
	return v, nil
}

// ReadU32 reads a 32-bit integer.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.data[c.offset:])
	c.offset += 4
	return v, nil
}

// ReadU64 reads a 64-bit integer.
func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := c.order.Uint64(c.data[c.offset:])
	c.offset += 8
	return v, nil
}

// PeekU16 reads a 16-bit integer without advancing.
func (c *Cursor) PeekU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	return c.order.Uint16(c.data[c.offset:]), nil
}

// PeekU32 reads a 32-bit integer without advancing.
func (c *Cursor) PeekU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	return c.order.Uint32(c.data[c.offset:]), nil
}

// ReadBytes reads n bytes and returns a copy of them.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.data[c.offset:c.offset+n])
	c.offset += n
	return out, nil
}

// ReadLength reads a 32-bit length and checks that many bytes remain after it.
// The cursor is left unchanged on failure.
func (c *Cursor) ReadLength() (int, error) {
	start := c.offset
	n, err := c.ReadU32()
	if err != nil {
		return 0, err
	}
	if uint64(n) > uint64(c.Remaining()) {
		c.offset = start
		return 0, &Error{Offset: start, Want: 4 + int(n), Have: c.Remaining() + 4}
	}
	return int(n), nil
}

// ByteAt returns the byte at absolute position pos without moving the cursor.
func (c *Cursor) ByteAt(pos int) (byte, error) {
	if pos < 0 || pos >= len(c.data) {
		return 0, &Error{Offset: pos, Want: 1, Have: max(len(c.data)-pos, 0)}
	}
	return c.data[pos], nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.offset += n
	return nil
}

// SkipPad advances by up to n bytes, stopping at the end of the buffer.
// It returns the number of bytes skipped. Only alignment padding uses it.
func (c *Cursor) SkipPad(n int) int {
	if n <= 0 {
		return 0
	}
	if r := c.Remaining(); n > r {
		n = r
	}
	c.offset += n
	return n
}

// AlignFrom pads the cursor so that the bytes consumed since start are a
// multiple of size.
func (c *Cursor) AlignFrom(start, size int) int {
	consumed := c.offset - start
	if rem := consumed % size; rem != 0 {
		return c.SkipPad(size - rem)
	}
	return 0
}
