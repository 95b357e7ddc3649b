package heap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// ErrUnsupported is returned for fractal heap features this package does
// not decode: I/O filtered heaps and huge objects.
var ErrUnsupported = errors.New("unsupported fractal heap feature")

const (
	heapIDManaged = 0
	heapIDHuge    = 1
	heapIDTiny    = 2
)

// FractalHeap is a "FRHP" heap, where new-style groups with dense link
// storage keep their link messages. Objects are addressed by heap IDs
// taken from the group's link index B-trees.
type FractalHeap struct {
	r *binpkg.Reader

	idLen      int
	width      int
	startBlock uint64
	maxDirect  uint64
	root       uint64
	rootRows   int

	// offsetWidth sizes block offsets and managed object offsets;
	// lengthWidth sizes managed object lengths.
	offsetWidth int
	lengthWidth int

	blocks []directBlock
}

// directBlock is one "FHDB" block and the span of heap space it covers.
type directBlock struct {
	addr   uint64
	offset uint64
	size   uint64
}

// ReadFractalHeap decodes the heap header at addr. Blocks are loaded on
// the first object lookup.
func ReadFractalHeap(r *binpkg.Reader, addr uint64) (*FractalHeap, error) {
	offSize, lenSize := r.OffsetSize(), r.LengthSize()
	size := 22 + 12*lenSize + 3*offSize
	raw, err := r.At(int64(addr)).ReadBytes(size)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap header: %w", err)
	}
	if string(raw[:4]) != "FRHP" {
		return nil, fmt.Errorf("invalid fractal heap signature %q", raw[:4])
	}
	if raw[4] != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version %d", raw[4])
	}
	if n := binary.LittleEndian.Uint16(raw[7:]); n != 0 {
		return nil, fmt.Errorf("fractal heap with %d bytes of filter info: %w", n, ErrUnsupported)
	}
	sum, err := r.At(int64(addr) + int64(size)).ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap checksum: %w", err)
	}
	if sum != binpkg.Lookup3Checksum(raw) {
		return nil, fmt.Errorf("fractal heap header at %d: checksum mismatch", addr)
	}

	h := &FractalHeap{r: r, idLen: int(binary.LittleEndian.Uint16(raw[5:]))}
	// flags only mark direct block checksums, which are not verified
	f := fields{b: raw, p: 10}
	maxManaged := f.uint(4)
	// next huge ID, huge object B-tree, free space, free space manager,
	// managed space, allocated space, allocation iterator, then managed,
	// huge and tiny object counts and sizes
	f.p += 10*lenSize + 2*offSize
	h.width = int(f.uint(2))
	h.startBlock = f.uint(lenSize)
	h.maxDirect = f.uint(lenSize)
	heapBits := int(f.uint(2))
	f.p += 2 // starting rows of the root indirect block
	h.root = f.uint(offSize)
	h.rootRows = int(f.uint(2))

	if h.width == 0 || !isPow2(h.startBlock) || !isPow2(h.maxDirect) || h.maxDirect < h.startBlock {
		return nil, fmt.Errorf("invalid fractal heap geometry: width %d, blocks %d..%d", h.width, h.startBlock, h.maxDirect)
	}
	if heapBits == 0 || heapBits > 64 {
		return nil, fmt.Errorf("invalid fractal heap size of %d bits", heapBits)
	}
	h.offsetWidth = (heapBits + 7) / 8
	h.lengthWidth = (bits.Len64(min(h.maxDirect, maxManaged)) + 7) / 8
	return h, nil
}

// IDLength is the size in bytes of the heap IDs that address this heap.
func (h *FractalHeap) IDLength() int { return h.idLen }

// Object returns the object a heap ID names.
func (h *FractalHeap) Object(id []byte) ([]byte, error) {
	if len(id) == 0 {
		return nil, errors.New("empty heap ID")
	}
	if v := id[0] >> 6; v != 0 {
		return nil, fmt.Errorf("unsupported heap ID version %d", v)
	}
	switch typ := id[0] >> 4 & 0x03; typ {
	case heapIDManaged:
		return h.managed(id[1:])
	case heapIDTiny:
		n := int(id[0]&0x0f) + 1
		if 1+n > len(id) {
			return nil, fmt.Errorf("tiny object of %d bytes in a %d byte heap ID", n, len(id))
		}
		return id[1 : 1+n], nil
	case heapIDHuge:
		return nil, fmt.Errorf("huge heap object: %w", ErrUnsupported)
	default:
		return nil, fmt.Errorf("invalid heap ID type %d", typ)
	}
}

func (h *FractalHeap) managed(id []byte) ([]byte, error) {
	if len(id) < h.offsetWidth+h.lengthWidth {
		return nil, fmt.Errorf("managed heap ID of %d bytes is too short", len(id)+1)
	}
	off := leUint(id, h.offsetWidth)
	n := leUint(id[h.offsetWidth:], h.lengthWidth)
	if h.blocks == nil {
		if err := h.loadBlocks(); err != nil {
			return nil, err
		}
	}
	for _, b := range h.blocks {
		if off < b.offset || off >= b.offset+b.size {
			continue
		}
		if n > b.offset+b.size-off {
			return nil, fmt.Errorf("heap object at %d+%d overruns its block", off, n)
		}
		return h.r.At(int64(b.addr + off - b.offset)).ReadBytes(int(n))
	}
	return nil, fmt.Errorf("heap offset %d is not in any direct block", off)
}

func (h *FractalHeap) loadBlocks() error {
	h.blocks = []directBlock{}
	if h.r.IsUndefinedOffset(h.root) {
		return nil
	}
	if h.rootRows == 0 {
		return h.addDirect(h.root, h.startBlock)
	}
	return h.readIndirect(h.root, h.rootRows, 0)
}

// rowSize is the block size of a doubling table row: the first two rows
// hold starting-size blocks, each later row doubles.
func (h *FractalHeap) rowSize(row int) uint64 {
	if row < 2 {
		return h.startBlock
	}
	return h.startBlock << (row - 1)
}

// directRows is the number of rows whose blocks are direct.
func (h *FractalHeap) directRows() int {
	return bits.Len64(h.maxDirect) - bits.Len64(h.startBlock) + 2
}

func (h *FractalHeap) readIndirect(addr uint64, rows, depth int) error {
	if depth > 64 || rows < 1 || rows > 64 {
		return fmt.Errorf("fractal heap indirect block of %d rows at depth %d", rows, depth)
	}
	offSize := h.r.OffsetSize()
	directRows := min(rows, h.directRows())
	entries := rows * h.width
	size := 5 + offSize + h.offsetWidth + entries*offSize
	raw, err := h.r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return fmt.Errorf("reading indirect block: %w", err)
	}
	if string(raw[:4]) != "FHIB" {
		return fmt.Errorf("invalid indirect block signature %q", raw[:4])
	}
	if binary.LittleEndian.Uint32(raw[size:]) != binpkg.Lookup3Checksum(raw[:size]) {
		return fmt.Errorf("indirect block at %d: checksum mismatch", addr)
	}

	f := fields{b: raw, p: 5 + offSize + h.offsetWidth}
	for row := 0; row < rows; row++ {
		for col := 0; col < h.width; col++ {
			child := f.uint(offSize)
			if h.r.IsUndefinedOffset(child) || child == 0 {
				continue
			}
			if row < directRows {
				if err := h.addDirect(child, h.rowSize(row)); err != nil {
					return err
				}
				continue
			}
			// an indirect child spans as many rows as fill its size
			sub := bits.Len64(h.rowSize(row)) - bits.Len64(h.startBlock*uint64(h.width)) + 1
			if err := h.readIndirect(child, sub, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *FractalHeap) addDirect(addr, size uint64) error {
	offSize := h.r.OffsetSize()
	raw, err := h.r.At(int64(addr)).ReadBytes(5 + offSize + h.offsetWidth)
	if err != nil {
		return fmt.Errorf("reading direct block: %w", err)
	}
	if string(raw[:4]) != "FHDB" {
		return fmt.Errorf("invalid direct block signature %q", raw[:4])
	}
	if raw[4] != 0 {
		return fmt.Errorf("unsupported direct block version %d", raw[4])
	}
	h.blocks = append(h.blocks, directBlock{
		addr:   addr,
		offset: leUint(raw[5+offSize:], h.offsetWidth),
		size:   size,
	})
	return nil
}

// fields reads little-endian values from a checksummed buffer whose length
// has already been validated.
type fields struct {
	b []byte
	p int
}

func (f *fields) uint(n int) uint64 {
	v := leUint(f.b[f.p:], n)
	f.p += n
	return v
}

func leUint(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func isPow2(v uint64) bool { return v != 0 && v&(v-1) == 0 }
