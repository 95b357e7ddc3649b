// Package binary reads and writes the fixed-layout records of an HDF5 file.
//
// Addresses and lengths in HDF5 are stored with a per-file width (the
// "size of offsets" and "size of lengths" in the superblock), so a
// [Reader] or [Writer] carries those widths alongside its byte order and
// position. Both are cheap values: [Reader.At] and [Writer.At] fork a
// cursor at a new position over the same underlying file.
package binary

import "encoding/binary"

// Config describes how a file encodes integers and addresses.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte offsets and lengths. It is
// what a file is read with until its superblock says otherwise.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// cursor is the position and encoding state shared by Reader and Writer.
type cursor struct {
	cfg Config
	pos int64
}

// Pos returns the current position.
func (c *cursor) Pos() int64 { return c.pos }

// Skip moves the position forward by n bytes.
func (c *cursor) Skip(n int64) { c.pos += n }

// Align rounds the position up to a multiple of n.
func (c *cursor) Align(n int64) {
	if n > 1 && c.pos%n != 0 {
		c.pos += n - c.pos%n
	}
}

// Config returns the encoding the cursor was created with.
func (c *cursor) Config() Config { return c.cfg }

func (c *cursor) OffsetSize() int { return c.cfg.OffsetSize }

func (c *cursor) LengthSize() int { return c.cfg.LengthSize }

func (c *cursor) ByteOrder() binary.ByteOrder { return c.cfg.ByteOrder }

// undefined is the all-ones address of the given width.
func undefined(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*size) - 1
}

// Uint decodes an unsigned integer as wide as b. Widths other than 1, 2,
// 4 and 8 are little-endian.
func Uint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// PutUint encodes v into all of b, truncating to its width.
func PutUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	default:
		for i := range b {
			b[i] = byte(v >> (8 * i))
		}
	}
}
