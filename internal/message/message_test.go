package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

var cfg = binpkg.DefaultConfig()

func roundTrip(t *testing.T, m Encoder) Message {
	t.Helper()
	b, err := m.Encode(cfg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Parse(m.Type(), b, cfg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Type() != m.Type() {
		t.Fatalf("parsed type %#x, want %#x", got.Type(), m.Type())
	}
	return got
}

func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestDataspace(t *testing.T) {
	got := roundTrip(t, NewDataspace([]uint64{4, 5, 6}, []uint64{4, 5, 0xffffffffffffffff})).(*Dataspace)
	if !reflect.DeepEqual(got.Dimensions, []uint64{4, 5, 6}) || got.MaxDims[2] != 0xffffffffffffffff {
		t.Errorf("got dims %v max %v", got.Dimensions, got.MaxDims)
	}
	if got.Rank() != 3 || got.NumElements() != 120 {
		t.Errorf("rank %d, elements %d", got.Rank(), got.NumElements())
	}

	scalar := roundTrip(t, NewScalarDataspace()).(*Dataspace)
	if !scalar.IsScalar() || scalar.NumElements() != 1 {
		t.Errorf("scalar decoded as %+v", scalar)
	}
	null := roundTrip(t, NewNullDataspace()).(*Dataspace)
	if !null.IsNull() || null.NumElements() != 0 {
		t.Errorf("null decoded as %+v", null)
	}

	if _, err := NewDataspace([]uint64{1, 2}, []uint64{1}).Encode(cfg); err == nil {
		t.Error("expected error for mismatched max dimensions")
	}
}

func TestDataspaceVersion1(t *testing.T) {
	body := cat([]byte{1, 2, 0, 0, 0, 0, 0, 0}, le64(7), le64(3))
	m, err := Parse(TypeDataspace, body, cfg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ds := m.(*Dataspace)
	if ds.SpaceType != DataspaceSimple || !reflect.DeepEqual(ds.Dimensions, []uint64{7, 3}) {
		t.Errorf("got %+v", ds)
	}

	scalar, err := Parse(TypeDataspace, []byte{1, 0, 0, 0, 0, 0, 0, 0}, cfg)
	if err != nil || !scalar.(*Dataspace).IsScalar() {
		t.Errorf("rank 0 version 1 should be scalar: %v %v", scalar, err)
	}
}

func TestDatatypes(t *testing.T) {
	tests := []*Datatype{
		NewFloatDatatype(8, OrderLE),
		NewFloatDatatype(4, OrderBE),
		NewFixedPointDatatype(2, true, OrderLE),
		NewFixedPointDatatype(8, false, OrderBE),
		NewStringDatatype(16, PadSpacePad, CharsetUTF8),
	}
	for _, want := range tests {
		got := roundTrip(t, want).(*Datatype)
		if got.Class != want.Class || got.Size != want.Size || got.ByteOrder != want.ByteOrder ||
			got.Signed != want.Signed || got.StringPadding != want.StringPadding || got.CharSet != want.CharSet {
			t.Errorf("round trip of %+v gave %+v", want, got)
		}
	}
}

func TestFloatProperties(t *testing.T) {
	b, err := NewFloatDatatype(8, OrderLE).Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := cat([]byte{0x11, 0x20, 63, 0}, le32(8), le16(0), le16(64), []byte{52, 11, 0, 52}, le32(1023))
	if !bytes.Equal(b, want) {
		t.Errorf("float64 encoded as % x, want % x", b, want)
	}
	if _, err := NewFloatDatatype(2, OrderLE).Encode(cfg); err == nil {
		t.Error("expected error for half precision")
	}
}

func encodedType(t *testing.T, dt *Datatype) []byte {
	t.Helper()
	b, err := dt.Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCompoundDatatype(t *testing.T) {
	i32 := encodedType(t, NewFixedPointDatatype(4, true, OrderLE))
	f64 := encodedType(t, NewFloatDatatype(8, OrderLE))

	// version 3: packed names, one-byte offsets for a 12-byte compound
	v3 := cat([]byte{0x36, 2, 0, 0}, le32(12), []byte("id\x00"), []byte{0}, i32, []byte("value\x00"), []byte{4}, f64)
	m, err := Parse(TypeDatatype, v3, cfg)
	if err != nil {
		t.Fatalf("Parse v3: %v", err)
	}
	dt := m.(*Datatype)
	if len(dt.Members) != 2 || dt.Members[1].Name != "value" || dt.Members[1].ByteOffset != 4 ||
		dt.Members[1].Type.Class != ClassFloatPoint {
		t.Errorf("v3 members = %+v", dt.Members)
	}

	// version 1: names padded to 8 bytes, 28 bytes of array description
	v1 := cat([]byte{0x16, 1, 0, 0}, le32(4), []byte("count\x00\x00\x00"), le32(0), make([]byte, 28), i32)
	m, err = Parse(TypeDatatype, v1, cfg)
	if err != nil {
		t.Fatalf("Parse v1: %v", err)
	}
	if dt := m.(*Datatype); len(dt.Members) != 1 || dt.Members[0].Name != "count" || !dt.Members[0].Type.Signed {
		t.Errorf("v1 members = %+v", dt.Members)
	}
}

func TestArrayAndVarLenDatatypes(t *testing.T) {
	f32 := encodedType(t, NewFloatDatatype(4, OrderLE))
	array := cat([]byte{0x3a, 0, 0, 0}, le32(24), []byte{2}, le32(2), le32(3), f32)
	m, err := Parse(TypeDatatype, array, cfg)
	if err != nil {
		t.Fatalf("Parse array: %v", err)
	}
	dt := m.(*Datatype)
	if !reflect.DeepEqual(dt.ArrayDims, []uint32{2, 3}) || dt.BaseType == nil || dt.BaseType.Size != 4 {
		t.Errorf("array = %+v", dt)
	}

	char := encodedType(t, NewFixedPointDatatype(1, false, OrderLE))
	vlen := cat([]byte{0x19, 0x01, 0, 0}, le32(16), char)
	m, err = Parse(TypeDatatype, vlen, cfg)
	if err != nil {
		t.Fatalf("Parse vlen: %v", err)
	}
	if !m.(*Datatype).IsVarLenString {
		t.Error("expected variable-length string")
	}
}

func TestEnumDatatype(t *testing.T) {
	u8 := encodedType(t, NewFixedPointDatatype(1, false, OrderLE))
	enum := cat([]byte{0x18, 2, 0, 0}, le32(1), u8, []byte("OFF\x00\x00\x00\x00\x00ON\x00\x00\x00\x00\x00\x00"), []byte{0, 1})
	m, err := Parse(TypeDatatype, enum, cfg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dt := m.(*Datatype); dt.BaseType == nil || len(dt.Properties) != len(enum)-8 {
		t.Errorf("enum = %+v", dt)
	}
}

func TestLayouts(t *testing.T) {
	contiguous := roundTrip(t, NewContiguousLayout(4096, 800)).(*DataLayout)
	if contiguous.Class != LayoutContiguous || contiguous.Address != 4096 || contiguous.Size != 800 {
		t.Errorf("contiguous = %+v", contiguous)
	}

	compact := roundTrip(t, NewCompactLayout([]byte{1, 2, 3})).(*DataLayout)
	if !bytes.Equal(compact.CompactData, []byte{1, 2, 3}) {
		t.Errorf("compact data = %v", compact.CompactData)
	}

	chunked := NewChunkedLayout([]uint32{16, 300}, 8, ChunkIndexFixedArray)
	chunked.ChunkIndexAddr = 9000
	if chunked.DimensionSizeBytes != 2 {
		t.Errorf("dimension size bytes = %d, want 2", chunked.DimensionSizeBytes)
	}
	got := roundTrip(t, chunked).(*DataLayout)
	if !reflect.DeepEqual(got.ChunkDims, []uint32{16, 300, 8}) || got.ChunkIndexAddr != 9000 ||
		got.ChunkIndexType != ChunkIndexFixedArray || got.PageBits != DefaultPageBits {
		t.Errorf("chunked = %+v", got)
	}

	btree := NewChunkedLayout([]uint32{4}, 4, ChunkIndexBTreeV2)
	if _, err := btree.Encode(cfg); err == nil {
		t.Error("expected error writing a B-tree index")
	}
}

func TestLayoutV4Indexes(t *testing.T) {
	head := []byte{4, 2, ChunkFlagSingleIndexFiltered, 2, 1, 10, 4}
	single := cat(head, []byte{byte(ChunkIndexSingleChunk)}, le64(37), le32(0x2), le64(5000))
	m, err := Parse(TypeDataLayout, single, cfg)
	if err != nil {
		t.Fatalf("Parse single: %v", err)
	}
	dl := m.(*DataLayout)
	if dl.FilteredChunkSize != 37 || dl.FilterMask != 2 || dl.ChunkIndexAddr != 5000 {
		t.Errorf("single = %+v", dl)
	}

	head[2] = 0
	v2 := cat(head, []byte{byte(ChunkIndexBTreeV2)}, le32(512), []byte{100, 40}, le64(6000))
	m, err = Parse(TypeDataLayout, v2, cfg)
	if err != nil {
		t.Fatalf("Parse B-tree v2: %v", err)
	}
	if dl := m.(*DataLayout); dl.ChunkIndexType != ChunkIndexBTreeV2 || dl.ChunkIndexAddr != 6000 {
		t.Errorf("B-tree v2 = %+v", dl)
	}

	v3 := cat([]byte{3, 2, 3}, le64(7000), le32(5), le32(5), le32(8))
	m, err = Parse(TypeDataLayout, v3, cfg)
	if err != nil {
		t.Fatalf("Parse v3: %v", err)
	}
	if dl := m.(*DataLayout); dl.ChunkIndexType != ChunkIndexBTreeV1 || len(dl.ChunkDims) != 3 {
		t.Errorf("v3 = %+v", dl)
	}

	if _, err := Parse(TypeDataLayout, cat(head, []byte{9}, le64(1)), cfg); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestFilterPipeline(t *testing.T) {
	v2 := cat([]byte{2, 2}, le16(FilterShuffle), le16(0), le16(1), le32(8),
		le16(FilterDeflate), le16(filterOptional), le16(1), le32(6))
	m, err := Parse(TypeFilterPipeline, v2, cfg)
	if err != nil {
		t.Fatalf("Parse v2: %v", err)
	}
	fp := m.(*FilterPipeline)
	if len(fp.Filters) != 2 || fp.Filters[1].ID != FilterDeflate || fp.Filters[1].ClientData[0] != 6 || !fp.Filters[1].IsOptional() {
		t.Errorf("v2 = %+v", fp.Filters)
	}

	v1 := cat([]byte{1, 1, 0, 0, 0, 0, 0, 0}, le16(FilterDeflate), le16(8), le16(0), le16(1),
		[]byte("deflate\x00"), le32(4), le32(0))
	m, err = Parse(TypeFilterPipeline, v1, cfg)
	if err != nil {
		t.Fatalf("Parse v1: %v", err)
	}
	if f := m.(*FilterPipeline).Filters[0]; f.Name != "deflate" || f.ClientData[0] != 4 {
		t.Errorf("v1 = %+v", f)
	}

	if _, err := Parse(TypeFilterPipeline, v2[:len(v2)-2], cfg); err == nil {
		t.Error("expected error for truncated pipeline")
	}
}

func TestFillValue(t *testing.T) {
	m, err := Parse(TypeFillValue, cat([]byte{3, fillHasValue | 0x02}, le32(4), []byte{1, 2, 3, 4}), cfg)
	if err != nil {
		t.Fatalf("Parse v3: %v", err)
	}
	fv := m.(*FillValue)
	if !fv.IsDefined || fv.SpaceAllocTime != 2 || !bytes.Equal(fv.Value, []byte{1, 2, 3, 4}) {
		t.Errorf("v3 = %+v", fv)
	}

	m, err = Parse(TypeFillValue, []byte{2, 1, 0, 0}, cfg)
	if err != nil {
		t.Fatalf("Parse v2: %v", err)
	}
	if fv := m.(*FillValue); fv.IsDefined || fv.Value != nil {
		t.Errorf("v2 = %+v", fv)
	}
}

func TestLinks(t *testing.T) {
	hard := roundTrip(t, NewHardLink("velocity", 1234)).(*Link)
	if !hard.IsHard() || hard.Name != "velocity" || hard.ObjectAddress != 1234 {
		t.Errorf("hard = %+v", hard)
	}

	soft := roundTrip(t, NewSoftLink("latest", "/sims/0500")).(*Link)
	if !soft.IsSoft() || soft.SoftLinkValue != "/sims/0500" {
		t.Errorf("soft = %+v", soft)
	}

	ext := roundTrip(t, &Link{LinkType: LinkTypeExternal, Name: "x", ExternalFile: "other.h5", ExternalPath: "/a/b"}).(*Link)
	if !ext.IsExternal() || ext.ExternalFile != "other.h5" || ext.ExternalPath != "/a/b" {
		t.Errorf("external = %+v", ext)
	}

	long := strings.Repeat("n", 300)
	b, err := NewHardLink(long, 1).Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b[1]&0x03 != 1 {
		t.Errorf("name length code = %d, want 1", b[1]&0x03)
	}
	if got := roundTrip(t, NewHardLink(long, 1)).(*Link); got.Name != long {
		t.Error("long name did not survive")
	}
}

func TestGroupMessages(t *testing.T) {
	li, err := NewLinkInfo().Encode(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := cat([]byte{0, 0}, le64(UndefinedAddress), le64(UndefinedAddress)); !bytes.Equal(li, want) {
		t.Errorf("link info = % x", li)
	}
	m, err := Parse(TypeLinkInfo, li, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.(*LinkInfo); got.FractalHeapAddr != UndefinedAddress || got.CreationOrderBTreeAddr != UndefinedAddress {
		t.Errorf("compact link info = %+v", got)
	}
	dense := &LinkInfo{Flags: 0x03, MaxCreationIndex: 9, FractalHeapAddr: 10, NameIndexBTreeAddr: 20, CreationOrderBTreeAddr: 30}
	if got := roundTrip(t, dense).(*LinkInfo); *got != *dense {
		t.Errorf("dense link info = %+v, want %+v", got, dense)
	}
	if _, err := Parse(TypeLinkInfo, []byte{1, 0}, cfg); err == nil {
		t.Error("expected error for link info version 1")
	}

	gi, err := NewGroupInfo().Encode(cfg)
	if err != nil || !bytes.Equal(gi, []byte{0, 0}) {
		t.Errorf("group info = % x, %v", gi, err)
	}

	m, err = Parse(TypeSymbolTable, cat(le64(100), le64(200)), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if st := m.(*SymbolTable); st.BTreeAddress != 100 || st.LocalHeapAddress != 200 {
		t.Errorf("symbol table = %+v", st)
	}
}

func TestContinuationAndUnknown(t *testing.T) {
	c, err := ParseContinuation(cat(le64(4096), le64(256)), cfg)
	if err != nil || c.Offset != 4096 || c.Length != 256 {
		t.Errorf("continuation = %+v, %v", c, err)
	}
	if _, err := ParseContinuation(le64(1), cfg); !errors.Is(err, errTruncated) {
		t.Errorf("err = %v, want truncated", err)
	}

	m, err := Parse(TypeAttribute, []byte{9, 9}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := m.(*Unknown); !ok || u.Type() != TypeAttribute || !bytes.Equal(u.Data(), []byte{9, 9}) {
		t.Errorf("unknown = %+v", m)
	}
}

func TestNarrowOffsets(t *testing.T) {
	narrow := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4}
	b, err := NewContiguousLayout(0x1000, 64).Encode(narrow)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 2+4+4 {
		t.Fatalf("encoded %d bytes, want 10", len(b))
	}
	m, err := Parse(TypeDataLayout, b, narrow)
	if err != nil {
		t.Fatal(err)
	}
	if dl := m.(*DataLayout); dl.Address != 0x1000 || dl.Size != 64 {
		t.Errorf("got %+v", dl)
	}
}
