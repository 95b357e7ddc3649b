package message

import (
	"bytes"
	"errors"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

var errTruncated = errors.New("truncated")

// decoder walks a message body. The first read past the end sets err and
// every later read yields zero values.
type decoder struct {
	cfg binary.Config
	b   []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.b)-d.off {
		d.err = errTruncated
		return nil
	}
	p := d.b[d.off : d.off+n]
	d.off += n
	return p
}

func (d *decoder) skip(n int) { d.take(n) }

func (d *decoder) uint(n int) uint64 {
	p := d.take(n)
	if p == nil {
		return 0
	}
	return binary.Uint(d.cfg.ByteOrder, p)
}

func (d *decoder) u8() uint8   { return uint8(d.uint(1)) }
func (d *decoder) u16() uint16 { return uint16(d.uint(2)) }
func (d *decoder) u32() uint32 { return uint32(d.uint(4)) }
func (d *decoder) u64() uint64 { return d.uint(8) }

func (d *decoder) offset() uint64 { return d.uint(d.cfg.OffsetSize) }
func (d *decoder) length() uint64 { return d.uint(d.cfg.LengthSize) }

func (d *decoder) bytes(n int) []byte {
	return bytes.Clone(d.take(n))
}

// cstring reads a NUL-terminated string and its terminator.
func (d *decoder) cstring() string {
	if d.err != nil {
		return ""
	}
	i := bytes.IndexByte(d.b[d.off:], 0)
	if i < 0 {
		d.err = errTruncated
		return ""
	}
	s := string(d.b[d.off : d.off+i])
	d.off += i + 1
	return s
}

// align skips padding up to a multiple of n from start.
func (d *decoder) align(start, n int) {
	if rem := (d.off - start) % n; rem != 0 {
		d.skip(n - rem)
	}
}

func (d *decoder) remaining() int { return len(d.b) - d.off }

// encoder accumulates a message body.
type encoder struct {
	cfg binary.Config
	b   []byte
}

func (e *encoder) u8(v ...uint8) { e.b = append(e.b, v...) }

func (e *encoder) uint(v uint64, n int) {
	start := len(e.b)
	e.b = append(e.b, make([]byte, n)...)
	binary.PutUint(e.cfg.ByteOrder, e.b[start:], v)
}

func (e *encoder) u16(v uint16) { e.uint(uint64(v), 2) }
func (e *encoder) u32(v uint32) { e.uint(uint64(v), 4) }

func (e *encoder) offset(v uint64) { e.uint(v, e.cfg.OffsetSize) }
func (e *encoder) length(v uint64) { e.uint(v, e.cfg.LengthSize) }

func (e *encoder) bytes(p []byte) { e.b = append(e.b, p...) }

// widthCode returns the smallest of 1, 2, 4 or 8 bytes that holds n, as
// the 2-bit code HDF5 stores in flag fields.
func widthCode(n uint64) uint8 {
	switch {
	case n <= 0xff:
		return 0
	case n <= 0xffff:
		return 1
	case n <= 0xffffffff:
		return 2
	}
	return 3
}
