package btree

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/heap"
)

// image is a sparse in-memory file that structures are placed into.
type image []byte

func (m *image) put(addr int, b []byte) {
	if end := addr + len(b); end > len(*m) {
		*m = append(*m, make([]byte, end-len(*m))...)
	}
	copy((*m)[addr:], b)
}

func (m *image) reader() *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(*m), binpkg.DefaultConfig())
}

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func sealed(b []byte) []byte { return cat(b, u32(binpkg.Lookup3Checksum(b))) }

// encodeV1Node encodes a TREE node with the given interleaved keys and children.
func encodeV1Node(typ, level uint8, keys [][]byte, children []uint64) []byte {
	b := cat([]byte("TREE"), []byte{typ, level}, u16(uint16(len(children))), u64(^uint64(0)), u64(^uint64(0)))
	for i, c := range children {
		b = cat(b, keys[i], u64(c))
	}
	return cat(b, keys[len(children)])
}

func chunkKey(size uint32, offsets ...uint64) []byte {
	b := cat(u32(size), u32(0))
	for _, o := range offsets {
		b = cat(b, u64(o))
	}
	return cat(b, u64(0))
}

func TestReadChunkIndexV1(t *testing.T) {
	var m image
	// A root with two leaves, each pointing at two 4x4 chunks.
	m.put(0, encodeV1Node(nodeChunk, 1,
		[][]byte{chunkKey(1, 0, 0), chunkKey(1, 4, 0), chunkKey(1, 8, 0)},
		[]uint64{1000, 2000}))
	m.put(1000, encodeV1Node(nodeChunk, 0,
		[][]byte{chunkKey(128, 0, 0), chunkKey(100, 0, 4), chunkKey(0, 4, 0)},
		[]uint64{0x5000, 0x5080}))
	m.put(2000, encodeV1Node(nodeChunk, 0,
		[][]byte{chunkKey(128, 4, 0), chunkKey(0, 4, 4), chunkKey(0, 8, 0)},
		[]uint64{0x5100, ^uint64(0)}))

	got, err := ReadChunkIndex(m.reader(), 0, 2)
	if err != nil {
		t.Fatalf("ReadChunkIndex: %v", err)
	}
	want := []ChunkEntry{
		{Offset: []uint64{0, 0}, Size: 128, Address: 0x5000},
		{Offset: []uint64{0, 4}, Size: 100, Address: 0x5080},
		{Offset: []uint64{4, 0}, Size: 128, Address: 0x5100},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %+v\nwant %+v", got, want)
	}
}

func TestReadChunkIndexV1Rejects(t *testing.T) {
	var m image
	m.put(0, []byte("EERT\x01\x00\x00\x00"))
	m.put(100, encodeV1Node(nodeGroup, 0, [][]byte{u64(0)}, nil))
	if _, err := ReadChunkIndex(m.reader(), 0, 2); err == nil {
		t.Error("expected error for bad signature")
	}
	if _, err := ReadChunkIndex(m.reader(), 100, 2); err == nil {
		t.Error("expected error for group node")
	}
}

func symbolEntry(nameOff, addr uint64, cache uint32, scratch uint32) []byte {
	return cat(u64(nameOff), u64(addr), u32(cache), u32(0), u32(scratch), make([]byte, 12))
}

func TestReadGroupEntries(t *testing.T) {
	names := "\x00data\x00link\x00/data\x00"
	var m image
	m.put(0, cat([]byte("HEAP\x00\x00\x00\x00"), u64(uint64(len(names))), u64(1), u64(3000)))
	m.put(3000, []byte(names))
	m.put(100, encodeV1Node(nodeGroup, 0, [][]byte{u64(0), u64(6)}, []uint64{500}))
	m.put(500, cat([]byte("SNOD\x01\x00"), u16(3),
		symbolEntry(1, 0x800, 1, 0),
		symbolEntry(6, 0x999, 2, 11),
		symbolEntry(0, 0, 0, 0)))

	r := m.reader()
	h, err := heap.ReadLocalHeap(r, 0)
	if err != nil {
		t.Fatalf("ReadLocalHeap: %v", err)
	}
	got, err := ReadGroupEntries(r, 100, h)
	if err != nil {
		t.Fatalf("ReadGroupEntries: %v", err)
	}
	want := []GroupEntry{
		{Name: "data", Address: 0x800},
		{Name: "link", SoftLink: "/data"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %+v, want %+v", got, want)
	}
}

// v2Header encodes a sealed BTHD header with 8-byte offsets and lengths.
func v2Header(typ uint8, nodeSize uint32, recSize, depth uint16, root uint64, rootRecs uint16, total uint64) []byte {
	return sealed(cat([]byte("BTHD"), []byte{0, typ}, u32(nodeSize), u16(recSize), u16(depth),
		[]byte{100, 40}, u64(root), u16(rootRecs), u64(total)))
}

func unfilteredRecord(addr uint64, scaled ...uint64) []byte {
	b := u64(addr)
	for _, s := range scaled {
		b = cat(b, u64(s))
	}
	return b
}

func TestReadChunkIndexV2Tree(t *testing.T) {
	// Type 10, rank 2, 24-byte records in 512-byte nodes: a leaf holds up to
	// 20 records, so child counts take one byte and a depth-1 pointer is 9.
	var m image
	m.put(0, v2Header(TypeChunk, 512, 24, 1, 200, 1, 5))
	m.put(200, sealed(cat([]byte("BTIN\x00\x0a"),
		unfilteredRecord(0x3000, 1, 0),
		u64(400), []byte{2},
		u64(600), []byte{2})))
	m.put(400, sealed(cat([]byte("BTLF\x00\x0a"),
		unfilteredRecord(0x1000, 0, 0),
		unfilteredRecord(0x2000, 0, 1))))
	m.put(600, sealed(cat([]byte("BTLF\x00\x0a"),
		unfilteredRecord(0x4000, 1, 1),
		unfilteredRecord(^uint64(0), 2, 0))))

	got, err := ReadChunkIndexV2(m.reader(), 0, []uint64{10, 5})
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	want := []ChunkEntry{
		{Offset: []uint64{0, 0}, Address: 0x1000},
		{Offset: []uint64{0, 5}, Address: 0x2000},
		{Offset: []uint64{10, 0}, Address: 0x3000},
		{Offset: []uint64{10, 5}, Address: 0x4000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %+v\nwant %+v", got, want)
	}
}

func TestReadChunkIndexV2Filtered(t *testing.T) {
	// address, 2-byte size, mask, two scaled offsets
	rec := func(addr uint64, size uint16, mask uint32, i, j uint64) []byte {
		return cat(u64(addr), u16(size), u32(mask), u64(i), u64(j))
	}
	var m image
	m.put(0, v2Header(TypeFilteredChunk, 512, 30, 0, 100, 2, 2))
	m.put(100, sealed(cat([]byte("BTLF\x00\x0b"),
		rec(0x1000, 77, 0, 0, 0),
		rec(0x2000, 80, 1, 0, 1))))

	got, err := ReadChunkIndexV2(m.reader(), 0, []uint64{4, 4})
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	want := []ChunkEntry{
		{Offset: []uint64{0, 0}, Size: 77, Address: 0x1000},
		{Offset: []uint64{0, 4}, Size: 80, FilterMask: 1, Address: 0x2000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %+v\nwant %+v", got, want)
	}
}

func TestReadChunkIndexV2Empty(t *testing.T) {
	var m image
	m.put(0, v2Header(TypeChunk, 512, 24, 0, ^uint64(0), 0, 0))
	got, err := ReadChunkIndexV2(m.reader(), 0, []uint64{4, 4})
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v; want no entries", got, err)
	}
}

func TestReadChunkIndexV2Rejects(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *image)
	}{
		{"signature", func(m *image) { m.put(0, sealed(make([]byte, 36))) }},
		{"type", func(m *image) { m.put(0, v2Header(1, 512, 24, 0, 100, 1, 1)) }},
		{"header checksum", func(m *image) {
			h := v2Header(TypeChunk, 512, 24, 0, 100, 1, 1)
			h[len(h)-1] ^= 0xff
			m.put(0, h)
		}},
		{"leaf signature", func(m *image) {
			m.put(0, v2Header(TypeChunk, 512, 24, 0, 100, 1, 1))
			m.put(100, sealed(cat([]byte("BTIN\x00\x0a"), unfilteredRecord(0x1000, 0, 0))))
		}},
		{"leaf checksum", func(m *image) {
			m.put(0, v2Header(TypeChunk, 512, 24, 0, 100, 1, 1))
			m.put(100, cat([]byte("BTLF\x00\x0a"), unfilteredRecord(0x1000, 0, 0), u32(0)))
		}},
	}
	for _, tt := range tests {
		var m image
		tt.build(&m)
		if _, err := ReadChunkIndexV2(m.reader(), 0, []uint64{4, 4}); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestReadLinkIndex(t *testing.T) {
	id := func(n byte) []byte { return []byte{0, n, 0, 0, 0, 9, 0} }

	// creation order: 15-byte records, one split across two leaves
	var m image
	m.put(0, v2Header(TypeLinkOrder, 512, 15, 1, 200, 1, 3))
	m.put(200, sealed(cat([]byte("BTIN\x00\x06"),
		u64(1), id(20),
		u64(400), []byte{1},
		u64(600), []byte{1})))
	m.put(400, sealed(cat([]byte("BTLF\x00\x06"), u64(0), id(10))))
	m.put(600, sealed(cat([]byte("BTLF\x00\x06"), u64(2), id(30))))

	got, err := ReadLinkIndex(m.reader(), 0)
	if err != nil {
		t.Fatalf("ReadLinkIndex: %v", err)
	}
	if want := [][]byte{id(10), id(20), id(30)}; !reflect.DeepEqual(got, want) {
		t.Errorf("creation order IDs = % x, want % x", got, want)
	}

	// name hash: 11-byte records in a single leaf
	m = nil
	m.put(0, v2Header(TypeLinkName, 512, 11, 0, 100, 2, 2))
	m.put(100, sealed(cat([]byte("BTLF\x00\x05"), u32(0x1111), id(7), u32(0x2222), id(8))))
	got, err = ReadLinkIndex(m.reader(), 0)
	if err != nil {
		t.Fatalf("ReadLinkIndex: %v", err)
	}
	if want := [][]byte{id(7), id(8)}; !reflect.DeepEqual(got, want) {
		t.Errorf("name IDs = % x, want % x", got, want)
	}
}

func TestReadLinkIndexRejects(t *testing.T) {
	var m image
	m.put(0, v2Header(TypeChunk, 512, 24, 0, 100, 1, 1))
	if _, err := ReadLinkIndex(m.reader(), 0); err == nil {
		t.Error("expected error for a chunk index")
	}
	m = nil
	m.put(0, v2Header(TypeLinkName, 512, 4, 0, 100, 1, 1))
	if _, err := ReadLinkIndex(m.reader(), 0); err == nil {
		t.Error("expected error for records without heap IDs")
	}
	m = nil
	m.put(0, v2Header(TypeLinkName, 512, 11, 0, ^uint64(0), 0, 0))
	if got, err := ReadLinkIndex(m.reader(), 0); err != nil || len(got) != 0 {
		t.Errorf("empty index = %v, %v", got, err)
	}
}

func TestEncodedWidth(t *testing.T) {
	for n, want := range map[uint64]int{0: 1, 1: 1, 255: 1, 256: 2, 65535: 2, 65536: 3, 1 << 32: 5} {
		if got := encodedWidth(n); got != want {
			t.Errorf("encodedWidth(%d) = %d, want %d", n, got, want)
		}
	}
}
