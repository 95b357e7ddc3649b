package btree

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/heap"
)

const (
	nodeGroup = 0
	nodeChunk = 1
)

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the element coordinate of the chunk's first element.
	Offset []uint64
	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32
	// Size is the stored (possibly filtered) size, or 0 when it equals the
	// full chunk size.
	Size    uint32
	Address uint64
}

// GroupEntry is one member of a symbol-table group.
type GroupEntry struct {
	Name    string
	Address uint64
	// SoftLink holds the target path of a soft link, empty for hard links.
	SoftLink string
}

// v1Node is the fixed prefix of a version 1 B-tree node.
type v1Node struct {
	level   uint8
	entries int
}

func readV1Node(nr *binary.Reader, wantType uint8) (v1Node, error) {
	var n v1Node
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return n, fmt.Errorf("reading B-tree node: %w", err)
	}
	if string(sig) != "TREE" {
		return n, fmt.Errorf("invalid B-tree signature %q", sig)
	}
	hdr, err := nr.ReadBytes(4)
	if err != nil {
		return n, err
	}
	if hdr[0] != wantType {
		return n, fmt.Errorf("B-tree node type %d, want %d", hdr[0], wantType)
	}
	n.level = hdr[1]
	n.entries = int(nr.ByteOrder().Uint16(hdr[2:]))
	// left and right siblings
	nr.Skip(2 * int64(nr.OffsetSize()))
	return n, nil
}

// ReadChunkIndex flattens a version 1 chunk B-tree for a dataset of rank
// ndims. Keys carry ndims+1 offsets, the last one being the element byte
// offset, which is dropped.
func ReadChunkIndex(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	nr := r.At(int64(addr))
	node, err := readV1Node(nr, nodeChunk)
	if err != nil {
		return nil, err
	}

	var out []ChunkEntry
	for i := 0; i < node.entries; i++ {
		key, err := readChunkKey(nr, ndims)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		if node.level > 0 {
			sub, err := ReadChunkIndex(r, child, ndims)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if key.Size == 0 || r.IsUndefinedOffset(child) {
			continue
		}
		key.Address = child
		out = append(out, key)
	}
	return out, nil
}

func readChunkKey(nr *binary.Reader, ndims int) (ChunkEntry, error) {
	var e ChunkEntry
	size, err := nr.ReadUint32()
	if err != nil {
		return e, err
	}
	mask, err := nr.ReadUint32()
	if err != nil {
		return e, err
	}
	e.Size, e.FilterMask = size, mask
	e.Offset = make([]uint64, ndims)
	for d := range e.Offset {
		if e.Offset[d], err = nr.ReadUint64(); err != nil {
			return e, err
		}
	}
	nr.Skip(8)
	return e, nil
}

// ReadGroupEntries lists the members of a symbol-table group whose names
// live in h.
func ReadGroupEntries(r *binary.Reader, addr uint64, h *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	node, err := readV1Node(nr, nodeGroup)
	if err != nil {
		return nil, err
	}

	var out []GroupEntry
	for i := 0; i < node.entries; i++ {
		// Group keys are heap offsets of the largest name below the child.
		nr.Skip(int64(nr.LengthSize()))
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		var sub []GroupEntry
		if node.level > 0 {
			sub, err = ReadGroupEntries(r, child, h)
		} else {
			sub, err = readSymbolNode(r, child, h)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func readSymbolNode(r *binary.Reader, addr uint64, h *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	hdr, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table node: %w", err)
	}
	if string(hdr[:4]) != "SNOD" {
		return nil, fmt.Errorf("invalid symbol table node signature %q", hdr[:4])
	}
	if hdr[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", hdr[4])
	}
	count := int(nr.ByteOrder().Uint16(hdr[6:]))

	out := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		e, err := readSymbolEntry(nr, h)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		if e.Name != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// readSymbolEntry decodes a symbol table entry: name offset, object header
// address, cache type, 4 reserved bytes and a 16-byte scratch pad.
func readSymbolEntry(nr *binary.Reader, h *heap.LocalHeap) (GroupEntry, error) {
	var e GroupEntry
	nameOff, err := nr.ReadOffset()
	if err != nil {
		return e, err
	}
	if e.Address, err = nr.ReadOffset(); err != nil {
		return e, err
	}
	cache, err := nr.ReadUint32()
	if err != nil {
		return e, err
	}
	nr.Skip(4)
	scratch, err := nr.ReadBytes(16)
	if err != nil {
		return e, err
	}
	e.Name = h.String(nameOff)
	if cache == 2 {
		e.SoftLink = h.String(uint64(nr.ByteOrder().Uint32(scratch)))
		e.Address = 0
	}
	return e, nil
}
