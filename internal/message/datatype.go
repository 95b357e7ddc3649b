package message

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// DatatypeClass is the class nibble of a datatype message.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder is the byte order of a numeric type.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding says how fixed-length strings fill unused bytes.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet is the encoding of string data.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

const (
	fixedSigned      = 0x08
	floatNormImplied = 0x20
	vlenString       = 1
)

// Datatype describes the element type of a dataset (message 0x0003).
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	// fixed-point, bitfield, time and float
	ByteOrder    ByteOrder
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	// string
	StringPadding StringPadding
	CharSet       CharacterSet

	Members []CompoundMember

	// ArrayDims is set for arrays. BaseType is the element type of an
	// array, the parent of an enum and the element of a variable-length
	// sequence.
	ArrayDims      []uint32
	BaseType       *Datatype
	IsVarLenString bool

	// Properties holds the class-specific property bytes as read.
	Properties []byte
}

// CompoundMember is one field of a compound type.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// NewFixedPointDatatype returns an integer type of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	classBits := uint32(order)
	if signed {
		classBits |= fixedSigned
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    classBits,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Signed:       signed,
	}
}

// NewFloatDatatype returns an IEEE 754 type of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	return &Datatype{
		Class:        ClassFloatPoint,
		ClassBits:    uint32(order) | floatNormImplied | (size*8-1)<<8,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, pad StringPadding, cset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(pad) | uint32(cset)<<4,
		Size:          size,
		StringPadding: pad,
		CharSet:       cset,
	}
}

func decodeDatatypeMessage(d *decoder) (Message, error) {
	return decodeDatatype(d)
}

// decodeDatatype reads one datatype, recursing into member and base types.
func decodeDatatype(d *decoder) (*Datatype, error) {
	head := d.u8()
	classBits := uint32(d.uint(3))
	m := &Datatype{Class: DatatypeClass(head & 0x0f), ClassBits: classBits, Size: d.u32()}
	version := head >> 4
	if d.err != nil {
		return nil, d.err
	}

	start := d.off
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.ByteOrder = ByteOrder(classBits & 1)
		m.Signed = m.Class == ClassFixedPoint && classBits&fixedSigned != 0
		m.BitOffset, m.BitPrecision = d.u16(), d.u16()
	case ClassFloatPoint:
		m.ByteOrder = ByteOrder(classBits & 1)
		m.BitOffset, m.BitPrecision = d.u16(), d.u16()
		d.skip(8)
	case ClassTime:
		m.ByteOrder = ByteOrder(classBits & 1)
		m.BitPrecision = d.u16()
	case ClassString:
		m.StringPadding = StringPadding(classBits & 0x0f)
		m.CharSet = CharacterSet(classBits >> 4 & 0x0f)
	case ClassReference:
	case ClassOpaque:
		d.skip(int(classBits & 0xff))
	case ClassCompound:
		if err := m.decodeMembers(d, version, int(classBits&0xffff)); err != nil {
			return nil, err
		}
	case ClassEnum:
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("enum base: %w", err)
		}
		m.BaseType = base
		n := int(classBits & 0xffff)
		for i := 0; i < n && d.err == nil; i++ {
			nameStart := d.off
			d.cstring()
			if version < 3 {
				d.align(nameStart, 8)
			}
		}
		d.skip(n * int(base.Size))
	case ClassVarLen:
		m.IsVarLenString = classBits&0x0f == vlenString
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("variable-length base: %w", err)
		}
		m.BaseType = base
	case ClassArray:
		ndims := int(d.u8())
		if version < 3 {
			d.skip(3)
		}
		m.ArrayDims = make([]uint32, ndims)
		for i := range m.ArrayDims {
			m.ArrayDims[i] = d.u32()
		}
		if version < 3 {
			d.skip(4 * ndims)
		}
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("array base: %w", err)
		}
		m.BaseType = base
	default:
		return nil, fmt.Errorf("unknown datatype class %d", m.Class)
	}
	if d.err != nil {
		return nil, d.err
	}
	m.Properties = append([]byte(nil), d.b[start:d.off]...)
	return m, nil
}

// decodeMembers reads the fields of a compound type. Versions 1 and 2 pad
// names to 8 bytes and use 4-byte offsets; version 1 also carries an
// obsolete array description per member. Version 3 packs names and sizes
// the offset to the compound's size.
func (m *Datatype) decodeMembers(d *decoder, version uint8, n int) error {
	m.Members = make([]CompoundMember, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		start := d.off
		member := CompoundMember{Name: d.cstring()}
		if version < 3 {
			d.align(start, 8)
			member.ByteOffset = d.u32()
			if version == 1 {
				d.skip(28)
			}
		} else {
			member.ByteOffset = uint32(d.uint(limitWidth(uint64(m.Size))))
		}
		t, err := decodeDatatype(d)
		if err != nil {
			return fmt.Errorf("compound member %q: %w", member.Name, err)
		}
		member.Type = t
		m.Members = append(m.Members, member)
	}
	return d.err
}

// limitWidth is the number of bytes needed to store values up to n.
func limitWidth(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}

// ieee holds the float property fields for the sizes that can be written:
// exponent location and size, mantissa size, exponent bias.
var ieee = map[uint32]struct {
	expLoc, expSize, mantSize uint8
	bias                      uint32
}{
	4: {23, 8, 23, 127},
	8: {52, 11, 52, 1023},
}

// Encode writes a version 1 datatype. Only integers, floats and
// fixed-length strings can be written.
func (m *Datatype) Encode(cfg binary.Config) ([]byte, error) {
	e := encoder{cfg: cfg}
	e.u8(uint8(m.Class) | 1<<4)
	e.uint(uint64(m.ClassBits), 3)
	e.u32(m.Size)
	switch m.Class {
	case ClassFixedPoint:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		if len(m.Properties) == 12 {
			e.bytes(m.Properties)
			break
		}
		p, ok := ieee[m.Size]
		if !ok {
			return nil, fmt.Errorf("cannot write %d-byte floats", m.Size)
		}
		e.u16(0)
		e.u16(uint16(m.Size * 8))
		e.u8(p.expLoc, p.expSize, 0, p.mantSize)
		e.u32(p.bias)
	case ClassString:
	default:
		return nil, fmt.Errorf("cannot write datatype class %d", m.Class)
	}
	return e.b, nil
}
