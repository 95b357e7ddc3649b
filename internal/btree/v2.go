package btree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// Version 2 B-tree record types: link name and creation order indexes of
// dense groups, and dataset chunks.
const (
	TypeLinkName      uint8 = 5
	TypeLinkOrder     uint8 = 6
	TypeChunk         uint8 = 10
	TypeFilteredChunk uint8 = 11
)

// nodePrefix is signature, version, type and checksum.
const nodePrefix = 4 + 1 + 1 + 4

var errChecksum = errors.New("checksum mismatch")

// v2Tree is a decoded BTHD header plus the field widths derived from it.
type v2Tree struct {
	r           *binpkg.Reader
	typ         uint8
	recordSize  int
	depth       int
	root        uint64
	rootRecords int
	total       uint64

	// countWidth is the width of a child's record count. totalWidth[d] is
	// the width of the total record count below a child at depth d.
	countWidth int
	totalWidth []int
}

// ReadChunkIndexV2 flattens a version 2 chunk B-tree. Records store chunk
// offsets scaled by the chunk dimensions, so chunkDims has one entry per
// dataset dimension.
func ReadChunkIndexV2(r *binpkg.Reader, addr uint64, chunkDims []uint64) ([]ChunkEntry, error) {
	t, err := readV2Header(r, addr)
	if err != nil {
		return nil, err
	}
	if t.typ != TypeChunk && t.typ != TypeFilteredChunk {
		return nil, fmt.Errorf("B-tree v2 type %d does not index chunks", t.typ)
	}
	if t.total == 0 || r.IsUndefinedOffset(t.root) {
		return nil, nil
	}
	var out []ChunkEntry
	err = t.walk(t.root, t.rootRecords, t.depth, func(rec []byte) error {
		e, err := t.chunkRecord(rec, chunkDims)
		if err != nil {
			return err
		}
		if e.Address != 0 && !r.IsUndefinedOffset(e.Address) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// ReadLinkIndex returns the fractal heap IDs a dense group's link index
// holds, in key order: by name hash for a type 5 tree, by creation order
// for a type 6 tree.
func ReadLinkIndex(r *binpkg.Reader, addr uint64) ([][]byte, error) {
	t, err := readV2Header(r, addr)
	if err != nil {
		return nil, err
	}
	var keyLen int
	switch t.typ {
	case TypeLinkName:
		keyLen = 4
	case TypeLinkOrder:
		keyLen = 8
	default:
		return nil, fmt.Errorf("B-tree v2 type %d does not index links", t.typ)
	}
	if t.recordSize <= keyLen {
		return nil, fmt.Errorf("link record of %d bytes holds no heap ID", t.recordSize)
	}
	if t.total == 0 || r.IsUndefinedOffset(t.root) {
		return nil, nil
	}
	var ids [][]byte
	err = t.walk(t.root, t.rootRecords, t.depth, func(rec []byte) error {
		ids = append(ids, rec[keyLen:])
		return nil
	})
	return ids, err
}

func readV2Header(r *binpkg.Reader, addr uint64) (*v2Tree, error) {
	offSize, lenSize := r.OffsetSize(), r.LengthSize()
	size := 4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + offSize + 2 + lenSize
	raw, err := r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree v2 header: %w", err)
	}
	if string(raw[:4]) != "BTHD" {
		return nil, fmt.Errorf("invalid B-tree v2 signature %q", raw[:4])
	}
	if raw[4] != 0 {
		return nil, fmt.Errorf("unsupported B-tree v2 version %d", raw[4])
	}
	if binary.LittleEndian.Uint32(raw[size:]) != binpkg.Lookup3Checksum(raw[:size]) {
		return nil, fmt.Errorf("B-tree v2 header: %w", errChecksum)
	}

	t := &v2Tree{r: r, typ: raw[5]}
	nodeSize := binary.LittleEndian.Uint32(raw[6:])
	t.recordSize = int(binary.LittleEndian.Uint16(raw[10:]))
	t.depth = int(binary.LittleEndian.Uint16(raw[12:]))
	p := 16
	t.root = uintN(raw[p:], offSize)
	p += offSize
	t.rootRecords = int(binary.LittleEndian.Uint16(raw[p:]))
	t.total = uintN(raw[p+2:], lenSize)

	if t.recordSize == 0 || int(nodeSize) <= nodePrefix {
		return nil, fmt.Errorf("invalid B-tree v2 geometry: node %d, record %d", nodeSize, t.recordSize)
	}
	t.layout(uint64(nodeSize), offSize)
	return t, nil
}

// layout derives the pointer field widths the way the library sizes them:
// from the most records a node of each depth can hold.
func (t *v2Tree) layout(nodeSize uint64, offsetSize int) {
	rec := uint64(t.recordSize)
	leafMax := (nodeSize - nodePrefix) / rec
	t.countWidth = encodedWidth(leafMax)
	t.totalWidth = make([]int, t.depth+1)
	cum := leafMax
	for d := 1; d <= t.depth; d++ {
		ptr := uint64(t.pointerSize(d, offsetSize))
		maxRecs := uint64(0)
		if nodeSize > nodePrefix+ptr {
			maxRecs = (nodeSize - nodePrefix - ptr) / (rec + ptr)
		}
		cum = (maxRecs+1)*cum + maxRecs
		t.totalWidth[d] = encodedWidth(cum)
	}
}

// pointerSize is the size of one child pointer in a node at depth d.
func (t *v2Tree) pointerSize(d, offsetSize int) int {
	n := offsetSize + t.countWidth
	if d > 1 {
		n += t.totalWidth[d-1]
	}
	return n
}

// walk visits the records of the subtree at addr in key order.
func (t *v2Tree) walk(addr uint64, nrec, depth int, visit func([]byte) error) error {
	sig := "BTLF"
	size := 6 + nrec*t.recordSize
	if depth > 0 {
		sig = "BTIN"
		size += (nrec + 1) * t.pointerSize(depth, t.r.OffsetSize())
	}
	raw, err := t.r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return fmt.Errorf("reading %s node: %w", sig, err)
	}
	if string(raw[:4]) != sig {
		return fmt.Errorf("invalid B-tree v2 node signature %q, want %q", raw[:4], sig)
	}
	if raw[4] != 0 {
		return fmt.Errorf("unsupported %s version %d", sig, raw[4])
	}
	if binary.LittleEndian.Uint32(raw[size:]) != binpkg.Lookup3Checksum(raw[:size]) {
		return fmt.Errorf("%s node at %d: %w", sig, addr, errChecksum)
	}

	records := raw[6 : 6+nrec*t.recordSize]
	record := func(i int) []byte { return records[i*t.recordSize : (i+1)*t.recordSize] }
	if depth == 0 {
		for i := 0; i < nrec; i++ {
			if err := visit(record(i)); err != nil {
				return err
			}
		}
		return nil
	}

	// Child i holds the keys below record i, so records and children
	// interleave when visited in order.
	offSize := t.r.OffsetSize()
	ptrSize := t.pointerSize(depth, offSize)
	ptrs := raw[6+nrec*t.recordSize : size]
	for i := 0; i <= nrec; i++ {
		ptr := ptrs[i*ptrSize:]
		child := uintN(ptr, offSize)
		count := int(uintN(ptr[offSize:], t.countWidth))
		if err := t.walk(child, count, depth-1, visit); err != nil {
			return err
		}
		if i < nrec {
			if err := visit(record(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// chunkRecord decodes a type 10 record (address, scaled offsets) or a
// type 11 record (address, stored size, filter mask, scaled offsets).
func (t *v2Tree) chunkRecord(rec []byte, chunkDims []uint64) (ChunkEntry, error) {
	offSize := t.r.OffsetSize()
	ndims := len(chunkDims)
	var e ChunkEntry
	e.Address = uintN(rec, offSize)
	p := offSize
	if t.typ == TypeFilteredChunk {
		sizeWidth := t.recordSize - offSize - 4 - 8*ndims
		if sizeWidth <= 0 || sizeWidth > 8 {
			return e, fmt.Errorf("filtered chunk record of %d bytes does not fit rank %d", t.recordSize, ndims)
		}
		e.Size = uint32(uintN(rec[p:], sizeWidth))
		p += sizeWidth
		e.FilterMask = binary.LittleEndian.Uint32(rec[p:])
		p += 4
	}
	if p+8*ndims > len(rec) {
		return e, fmt.Errorf("chunk record of %d bytes does not fit rank %d", len(rec), ndims)
	}
	e.Offset = make([]uint64, ndims)
	for d := range e.Offset {
		e.Offset[d] = binary.LittleEndian.Uint64(rec[p:]) * chunkDims[d]
		p += 8
	}
	return e, nil
}

func uintN(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// encodedWidth is the number of bytes needed to store n.
func encodedWidth(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}
