package cursor

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCursor(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}
	c := New(data)

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Offset())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.Remaining())
	assert.Equal(t, binary.BigEndian, c.Order())
}

func TestAt(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}

	c, err := At(data, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Offset())
	assert.Equal(t, 1, c.Remaining())

	c, err = At(data, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Remaining())

	_, err = At(data, 4)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = At(data, -1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestFixedWidthReads(t *testing.T) {
	data := []byte{
		0x7f,
		0x12, 0x34,
		0xde, 0xad, 0xbe, 0xef,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}
	c := New(data)

	u8, err := c.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7f), u8)

	u16, err := c.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := c.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := c.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	assert.Equal(t, 0, c.Remaining())
}

func TestLittleEndian(t *testing.T) {
	c := New([]byte{0x01, 0x00, 0x00, 0x00}).WithOrder(binary.LittleEndian)

	v, err := c.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestTruncatedReadsDoNotAdvance(t *testing.T) {
	testCases := []struct {
		name string
		read func(c *Cursor) error
	}{
		{"u16", func(c *Cursor) error { _, err := c.ReadU16(); return err }},
		{"u32", func(c *Cursor) error { _, err := c.ReadU32(); return err }},
		{"u64", func(c *Cursor) error { _, err := c.ReadU64(); return err }},
		{"bytes", func(c *Cursor) error { _, err := c.ReadBytes(2); return err }},
		{"skip", func(c *Cursor) error { return c.Skip(2) }},
		{"negative", func(c *Cursor) error { _, err := c.ReadBytes(-1); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New([]byte{0xaa})
			err := tc.read(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTruncated)
			assert.Equal(t, 0, c.Offset())

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, 0, cerr.Offset)
			assert.Equal(t, 1, cerr.Have)
		})
	}
}

func TestReadBytesCopies(t *testing.T) {
	data := []byte{0x01, 0x02}
	c := New(data)

	b, err := c.ReadBytes(2)
	require.NoError(t, err)
	b[0] = 0xff

	assert.Equal(t, byte(0x01), data[0], "cursor must not hand out aliases of the input")
}

func TestReadLength(t *testing.T) {
	c := New([]byte{0x00, 0x00, 0x00, 0x02, 0xaa, 0xbb})
	n, err := c.ReadLength()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, c.Offset())

	c = New([]byte{0x00, 0x00, 0x00, 0x05, 0xaa})
	_, err = c.ReadLength()
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 0, c.Offset())

	c = New([]byte{0xff, 0xff, 0xff, 0xff})
	_, err = c.ReadLength()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestPeek(t *testing.T) {
	c := New([]byte{0x00, 0x07, 0x00, 0x00})

	v16, err := c.PeekU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), v16)

	v32, err := c.PeekU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00070000), v32)
	assert.Equal(t, 0, c.Offset())
}

func TestByteAt(t *testing.T) {
	c := New([]byte{0x10, 0x20})

	b, err := c.ByteAt(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), b)

	_, err = c.ByteAt(2)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestAlignFrom(t *testing.T) {
	c := New(make([]byte, 16))
	require.NoError(t, c.Skip(7))

	skipped := c.AlignFrom(0, 4)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 8, c.Offset())

	assert.Equal(t, 0, c.AlignFrom(0, 4))

	// padding stops at the end of the buffer
	c = New(make([]byte, 6))
	require.NoError(t, c.Skip(5))
	assert.Equal(t, 1, c.AlignFrom(0, 4))
	assert.Equal(t, 6, c.Offset())
}

func TestSeek(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, c.Skip(3))

	require.NoError(t, c.Seek(1))
	b, err := c.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), b)

	assert.ErrorIs(t, c.Seek(5), ErrTruncated)
	assert.Equal(t, 2, c.Offset())
}
