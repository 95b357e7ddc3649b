package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

type memFile struct{ b []byte }

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.b).ReadAt(p, off)
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, size := range []uint8{4, 8} {
		sb := New()
		sb.OffsetSize, sb.LengthSize = size, size
		sb.RootGroupAddress = 48
		sb.EOFAddress = 4096

		var f memFile
		w := binpkg.NewWriter(&f, sb.ReaderConfig())
		n, err := sb.Write(w)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if int(n) != sb.Size() || len(f.b) != sb.Size() {
			t.Fatalf("wrote %d bytes (file %d), Size() = %d", n, len(f.b), sb.Size())
		}

		got, err := Read(&f)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got.Version != 3 || got.OffsetSize != size || got.RootGroupAddress != 48 || got.EOFAddress != 4096 {
			t.Errorf("read back %+v", got)
		}
		if !binpkg.NewReader(&f, got.ReaderConfig()).IsUndefinedOffset(got.ExtensionAddress) {
			t.Errorf("extension address 0x%x should be undefined", got.ExtensionAddress)
		}
	}
}

func TestReadAfterUserBlock(t *testing.T) {
	sb := New()
	sb.BaseAddress = 512
	sb.RootGroupAddress = 48
	f := memFile{b: make([]byte, 512)}
	if _, err := sb.Write(binpkg.NewWriter(&f, sb.ReaderConfig()).At(512)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Offset != 512 || got.BaseAddress != 512 {
		t.Errorf("Offset = %d, BaseAddress = %d", got.Offset, got.BaseAddress)
	}
}

func TestReadRejects(t *testing.T) {
	valid := func() []byte {
		var f memFile
		sb := New()
		sb.Write(binpkg.NewWriter(&f, sb.ReaderConfig()))
		return f.b
	}

	corrupt := valid()
	corrupt[len(corrupt)-1] ^= 0xff
	future := valid()
	future[8] = 4
	oddSize := valid()
	oddSize[9] = 3

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotHDF5},
		{"zeros", make([]byte, 4096), ErrNotHDF5},
		{"checksum", corrupt, ErrInvalidSuperblock},
		{"version", future, ErrUnsupportedVersion},
		{"offset size", oddSize, ErrInvalidSuperblock},
	}
	for _, tt := range tests {
		_, err := Read(&memFile{b: tt.data})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

// v0Image builds a version 0 superblock whose root entry caches a symbol
// table.
func v0Image() []byte {
	le := binary.LittleEndian
	b := append([]byte{}, Signature...)
	b = append(b, 0, 0, 0, 0, 0, 8, 8, 0)
	b = le.AppendUint16(b, 4)
	b = le.AppendUint16(b, 16)
	b = le.AppendUint32(b, 0)
	for _, a := range []uint64{0, ^uint64(0), 8192, ^uint64(0), 0, 800} {
		b = le.AppendUint64(b, a)
	}
	b = le.AppendUint32(b, 1)
	b = le.AppendUint32(b, 0)
	b = le.AppendUint64(b, 1200)
	b = le.AppendUint64(b, 680)
	return b
}

func TestReadV0(t *testing.T) {
	got, err := Read(&memFile{b: v0Image()})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := Superblock{
		OffsetSize:                8,
		LengthSize:                8,
		EOFAddress:                8192,
		RootGroupAddress:          800,
		RootGroupBTreeAddress:     1200,
		RootGroupLocalHeapAddress: 680,
	}
	if *got != want {
		t.Errorf("got %+v\nwant %+v", *got, want)
	}
}
