package message

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType identifies the structure that locates a dataset's chunks.
// Nonzero values are the codes stored by layout version 4.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Version 4 chunked layout flags.
const (
	ChunkFlagDontFilterPartialEdge uint8 = 0x01
	ChunkFlagSingleIndexFiltered   uint8 = 0x02
)

// DefaultPageBits is the fixed array page size exponent used when writing.
const DefaultPageBits = 10

// DataLayout says where a dataset's raw data lives (message 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// contiguous
	Address uint64
	Size    uint64

	// ChunkDims has one more entry than the dataset rank: the last is the
	// element size in bytes.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8
	PageBits           uint8

	// single chunk index over a filtered chunk
	FilteredChunkSize uint64
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewContiguousLayout points at size bytes of data at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. chunkDims has the
// dataset's rank; the element size is appended. The index address is
// filled in once the index is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, index ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var largest uint32
	for _, d := range dims {
		largest = max(largest, d)
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     index,
		DimensionSizeBytes: uint8(1) << widthCode(uint64(largest)),
	}
}

func decodeDataLayout(d *decoder) (Message, error) {
	m := &DataLayout{Version: d.u8()}
	switch m.Version {
	case 1, 2:
		return m, m.decodeV1(d)
	case 3, 4:
		return m, m.decodeV3(d)
	}
	return nil, fmt.Errorf("unsupported data layout version %d", m.Version)
}

// decodeV1 reads versions 1 and 2. A contiguous size is left zero for the
// reader to derive from the dataspace and datatype.
func (m *DataLayout) decodeV1(d *decoder) error {
	ndims := int(d.u8())
	m.Class = LayoutClass(d.u8())
	d.skip(5)
	var addr uint64
	if m.Class != LayoutCompact {
		addr = d.offset()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = d.u32()
	}
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.bytes(int(d.u32()))
	case LayoutContiguous:
		m.Address = addr
	case LayoutChunked:
		m.ChunkIndexAddr = addr
		m.ChunkDims = dims
	default:
		return fmt.Errorf("unknown layout class %d", m.Class)
	}
	return nil
}

func (m *DataLayout) decodeV3(d *decoder) error {
	m.Class = LayoutClass(d.u8())
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.bytes(int(d.u16()))
	case LayoutContiguous:
		m.Address = d.offset()
		m.Size = d.length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(d.u8())
			m.ChunkIndexType = ChunkIndexBTreeV1
			m.ChunkIndexAddr = d.offset()
			m.ChunkDims = make([]uint32, ndims)
			for i := range m.ChunkDims {
				m.ChunkDims[i] = d.u32()
			}
			return nil
		}
		return m.decodeChunkedV4(d)
	case LayoutVirtual:
		d.skip(d.remaining())
	default:
		return fmt.Errorf("unknown layout class %d", m.Class)
	}
	return nil
}

func (m *DataLayout) decodeChunkedV4(d *decoder) error {
	m.ChunkFlags = d.u8()
	ndims := int(d.u8())
	m.DimensionSizeBytes = d.u8()
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = uint32(d.uint(int(m.DimensionSizeBytes)))
	}
	m.ChunkIndexType = ChunkIndexType(d.u8())
	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&ChunkFlagSingleIndexFiltered != 0 {
			m.FilteredChunkSize = d.length()
			m.FilterMask = d.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		m.PageBits = d.u8()
	case ChunkIndexExtensibleArray:
		// max bits, index elements, min pointers, min elements, page bits
		d.skip(5)
	case ChunkIndexBTreeV2:
		// node size, split and merge percentages
		d.skip(6)
	default:
		return fmt.Errorf("unknown chunk index type %d", m.ChunkIndexType)
	}
	m.ChunkIndexAddr = d.offset()
	return nil
}

// Encode writes a version 3 layout, or version 4 for chunked storage with
// a single chunk, implicit or fixed array index.
func (m *DataLayout) Encode(cfg binary.Config) ([]byte, error) {
	e := encoder{cfg: cfg}
	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xffff {
			return nil, fmt.Errorf("compact data of %d bytes exceeds 65535", len(m.CompactData))
		}
		e.u8(3, uint8(m.Class))
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.u8(3, uint8(m.Class))
		e.offset(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		width := m.DimensionSizeBytes
		if width == 0 {
			width = 4
		}
		e.u8(4, uint8(m.Class), m.ChunkFlags, uint8(len(m.ChunkDims)), width)
		for _, v := range m.ChunkDims {
			e.uint(uint64(v), int(width))
		}
		e.u8(uint8(m.ChunkIndexType))
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk, ChunkIndexImplicit:
		case ChunkIndexFixedArray:
			bits := m.PageBits
			if bits == 0 {
				bits = DefaultPageBits
			}
			e.u8(bits)
		default:
			return nil, fmt.Errorf("cannot write chunk index type %d", m.ChunkIndexType)
		}
		e.offset(m.ChunkIndexAddr)
	default:
		return nil, fmt.Errorf("cannot write %s layout", m.Class)
	}
	return e.b, nil
}
