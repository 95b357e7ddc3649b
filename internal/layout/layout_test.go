package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// memFile is an in-memory io.ReaderAt/io.WriterAt.
type memFile struct {
	buf []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	return copy(m.buf[off:], p), nil
}

func testConfig() binpkg.Config {
	return binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// bumpAllocator hands out consecutive addresses starting at base.
func bumpAllocator(base uint64) func(int64) uint64 {
	next := base
	return func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	}
}

// iota16 returns n uint16 values 0..n-1 as little-endian bytes.
func iota16(n int) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(i))
	}
	return b
}

func decode16(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out
}

// expected16 computes the hyperslab of an iota dataset directly.
func expected16(dims, start, count []uint64) []uint16 {
	var out []uint16
	var walk func(d int, linear uint64)
	walk = func(d int, linear uint64) {
		if d == len(dims) {
			out = append(out, uint16(linear))
			return
		}
		for i := start[d]; i < start[d]+count[d]; i++ {
			walk(d+1, linear*dims[d]+i)
		}
	}
	walk(0, 0)
	return out
}

func dataspace(dims ...uint64) *message.Dataspace {
	return message.NewDataspace(dims, nil)
}

var uint16Type = &message.Datatype{Class: message.ClassFixedPoint, Size: 2}

func TestCompactReadSlice(t *testing.T) {
	dims := []uint64{3, 4}
	c := NewCompact(&message.DataLayout{Class: message.LayoutCompact, CompactData: iota16(12)}, dataspace(dims...), uint16Type)

	if c.Class() != message.LayoutCompact {
		t.Errorf("Class() = %d", c.Class())
	}

	all, err := c.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	all[0] = 0xFF
	again, _ := c.Read()
	if again[0] == 0xFF {
		t.Error("Read should return a copy")
	}

	got, err := c.ReadSlice([]uint64{1, 1}, []uint64{2, 2})
	if err != nil {
		t.Fatalf("ReadSlice failed: %v", err)
	}
	want := []uint16{5, 6, 9, 10}
	if g := decode16(got); !equal16(g, want) {
		t.Errorf("ReadSlice = %v, want %v", g, want)
	}
}

func TestContiguousReadSlice(t *testing.T) {
	dims := []uint64{4, 5, 6}
	f := &memFile{}
	const base = 64
	if _, err := f.WriteAt(iota16(int(4*5*6)), base); err != nil {
		t.Fatal(err)
	}
	reader := binpkg.NewReader(f, testConfig())
	c := NewContiguous(&message.DataLayout{Class: message.LayoutContiguous, Address: base}, dataspace(dims...), uint16Type, reader)

	if c.Size() != 240 {
		t.Errorf("Size() = %d, want size derived from dataspace", c.Size())
	}

	tests := []struct {
		name         string
		start, count []uint64
	}{
		{"interior", []uint64{1, 2, 3}, []uint64{2, 2, 2}},
		{"full rows", []uint64{1, 0, 0}, []uint64{2, 5, 6}},
		{"single element", []uint64{3, 4, 5}, []uint64{1, 1, 1}},
		{"full extent", []uint64{0, 0, 0}, []uint64{4, 5, 6}},
		{"full inner plane", []uint64{2, 1, 0}, []uint64{1, 3, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ReadSlice(tt.start, tt.count)
			if err != nil {
				t.Fatalf("ReadSlice failed: %v", err)
			}
			want := expected16(dims, tt.start, tt.count)
			if g := decode16(got); !equal16(g, want) {
				t.Errorf("ReadSlice = %v, want %v", g, want)
			}
		})
	}
}

func TestContiguousUnallocated(t *testing.T) {
	reader := binpkg.NewReader(&memFile{}, testConfig())
	c := NewContiguous(&message.DataLayout{Class: message.LayoutContiguous, Address: 0xFFFFFFFFFFFFFFFF}, dataspace(2, 2), uint16Type, reader)

	got, err := c.ReadSlice([]uint64{0, 0}, []uint64{2, 2})
	if err != nil {
		t.Fatalf("ReadSlice failed: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("unallocated data should read as zeros, got %v", got)
	}
}

func TestSelectionBounds(t *testing.T) {
	c := NewCompact(&message.DataLayout{Class: message.LayoutCompact, CompactData: iota16(12)}, dataspace(3, 4), uint16Type)

	if _, err := c.ReadSlice([]uint64{2, 0}, []uint64{2, 1}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := c.ReadSlice([]uint64{0}, []uint64{1}); err == nil {
		t.Error("expected rank mismatch error")
	}
}

func TestChunkedRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		dims      []uint64
		chunkDims []uint32
		wantIndex message.ChunkIndexType
	}{
		{"single chunk", []uint64{3, 4, 5}, []uint32{3, 4, 5}, message.ChunkIndexSingleChunk},
		{"oversized chunk", []uint64{3, 4, 5}, []uint32{4, 8, 8}, message.ChunkIndexSingleChunk},
		{"even grid", []uint64{4, 6, 8}, []uint32{2, 3, 4}, message.ChunkIndexFixedArray},
		{"ragged edges", []uint64{5, 7, 9}, []uint32{2, 3, 4}, message.ChunkIndexFixedArray},
		{"one dimension", []uint64{10}, []uint32{3}, message.ChunkIndexFixedArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &memFile{}
			w := binpkg.NewWriter(f, testConfig())
			cw, err := NewChunkWriter(w, tt.dims, tt.chunkDims, 2, bumpAllocator(128))
			if err != nil {
				t.Fatalf("NewChunkWriter failed: %v", err)
			}

			n := int(product(tt.dims))
			msg, err := cw.Write(iota16(n))
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if msg.ChunkIndexType != tt.wantIndex {
				t.Errorf("index type = %d, want %d", msg.ChunkIndexType, tt.wantIndex)
			}

			reader := binpkg.NewReader(f, testConfig())
			c, err := NewChunked(msg, dataspace(tt.dims...), uint16Type, nil, reader)
			if err != nil {
				t.Fatalf("NewChunked failed: %v", err)
			}

			all, err := c.Read()
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(all, iota16(n)) {
				t.Errorf("Read mismatch: %v", decode16(all))
			}

			start := make([]uint64, len(tt.dims))
			count := make([]uint64, len(tt.dims))
			for d := range tt.dims {
				start[d] = tt.dims[d] / 3
				count[d] = tt.dims[d] - start[d] - tt.dims[d]/4
			}
			got, err := c.ReadSlice(start, count)
			if err != nil {
				t.Fatalf("ReadSlice failed: %v", err)
			}
			want := expected16(tt.dims, start, count)
			if g := decode16(got); !equal16(g, want) {
				t.Errorf("ReadSlice(%v, %v) = %v, want %v", start, count, g, want)
			}
		})
	}
}

func TestChunkedLayoutMessageRoundTrip(t *testing.T) {
	f := &memFile{}
	w := binpkg.NewWriter(f, testConfig())
	cw, err := NewChunkWriter(w, []uint64{4, 4}, []uint32{2, 2}, 2, bumpAllocator(256))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := cw.Write(iota16(16))
	if err != nil {
		t.Fatal(err)
	}

	enc, err := msg.Encode(testConfig())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	parsed, err := message.Parse(message.TypeDataLayout, enc, testConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dl := parsed.(*message.DataLayout)
	if dl.ChunkIndexType != message.ChunkIndexFixedArray || dl.ChunkIndexAddr != msg.ChunkIndexAddr {
		t.Errorf("parsed index = (%d, %d), want (%d, %d)",
			dl.ChunkIndexType, dl.ChunkIndexAddr, message.ChunkIndexFixedArray, msg.ChunkIndexAddr)
	}

	c, err := NewChunked(dl, dataspace(4, 4), uint16Type, nil, binpkg.NewReader(f, testConfig()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadSlice([]uint64{1, 1}, []uint64{2, 3})
	if err != nil {
		t.Fatalf("ReadSlice failed: %v", err)
	}
	want := []uint16{5, 6, 7, 9, 10, 11}
	if g := decode16(got); !equal16(g, want) {
		t.Errorf("ReadSlice = %v, want %v", g, want)
	}
}

func TestChunkedImplicitIndex(t *testing.T) {
	dims := []uint64{4, 4}
	f := &memFile{}
	w := binpkg.NewWriter(f, testConfig())
	cw, err := NewChunkWriter(w, dims, []uint32{2, 2}, 2, bumpAllocator(64))
	if err != nil {
		t.Fatal(err)
	}
	// The bump allocator lays chunks out back to back, which is what an
	// implicit index describes.
	if _, err := cw.WriteChunks(cw.Split(iota16(16))); err != nil {
		t.Fatal(err)
	}
	msg := message.NewChunkedLayout([]uint32{2, 2}, 2, message.ChunkIndexImplicit)
	msg.ChunkIndexAddr = 64

	c, err := NewChunked(msg, dataspace(dims...), uint16Type, nil, binpkg.NewReader(f, testConfig()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadSlice([]uint64{1, 0}, []uint64{3, 3})
	if err != nil {
		t.Fatalf("ReadSlice failed: %v", err)
	}
	want := expected16(dims, []uint64{1, 0}, []uint64{3, 3})
	if g := decode16(got); !equal16(g, want) {
		t.Errorf("ReadSlice = %v, want %v", g, want)
	}
}

func TestChunkedUnallocatedIndex(t *testing.T) {
	msg := message.NewChunkedLayout([]uint32{2}, 2, message.ChunkIndexFixedArray)
	msg.ChunkIndexAddr = 0xFFFFFFFFFFFFFFFF

	c, err := NewChunked(msg, dataspace(4), uint16Type, nil, binpkg.NewReader(&memFile{}, testConfig()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("unwritten chunks should read as zeros, got %v", got)
	}
}

func TestSplitPadsEdgeChunks(t *testing.T) {
	cw, err := NewChunkWriter(nil, []uint64{3}, []uint32{2}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunks := cw.Split(iota16(3))
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if g := decode16(chunks[1]); !equal16(g, []uint16{2, 0}) {
		t.Errorf("edge chunk = %v, want [2 0]", g)
	}
}

func equal16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
