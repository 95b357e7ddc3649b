// Package tensorio saves and loads extracted tensors: a native .tns dump,
// a long-format Parquet table and an HDF5 file.
package tensorio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-malhotra/turbslice/extract"
	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// .tns layout, little-endian:
//
//	magic "TNS1", version u8, codec u8
//	variable (u16 length + bytes)
//	time key count u32, then each key (u16 length + bytes)
//	box corners 6 x i64, shape 4 x u64
//	payload length u64, payload
//	xxhash64 of the uncompressed payload u64
const (
	magic   = "TNS1"
	version = 1
)

var (
	// ErrNotTensor is returned for data that does not start with the .tns magic.
	ErrNotTensor = errors.New("not a tensor file")
	// ErrChecksum is returned when the payload does not match its checksum.
	ErrChecksum = errors.New("tensor payload checksum mismatch")
)

// Marshal encodes t in the .tns format.
func Marshal(t *extract.Tensor, opts ...Option) ([]byte, error) {
	o := buildOptions(opts)

	raw := make([]byte, 8*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	codec, payload, err := compress(o.codec, o.level, raw)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 128+len(payload))
	buf = append(buf, magic...)
	buf = append(buf, version, byte(codec))
	if buf, err = appendString(buf, t.Variable); err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.TimeKeys)))
	for _, key := range t.TimeKeys {
		if buf, err = appendString(buf, key); err != nil {
			return nil, err
		}
	}
	for _, corner := range [][3]int64{t.Box.X1, t.Box.X2} {
		for _, c := range corner {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(c))
		}
	}
	for _, d := range t.Shape() {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(d))
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(raw))
	return buf, nil
}

// Unmarshal decodes a .tns image.
func Unmarshal(data []byte) (*extract.Tensor, error) {
	r := binpkg.NewReader(bytes.NewReader(data), binpkg.DefaultConfig())

	head, err := r.ReadBytes(6)
	if err != nil || string(head[:4]) != magic {
		return nil, ErrNotTensor
	}
	if head[4] != version {
		return nil, fmt.Errorf("unsupported tensor file version %d", head[4])
	}
	codec := Codec(head[5])

	variable, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("reading variable: %w", err)
	}
	nkeys, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading time key count: %w", err)
	}
	if int64(nkeys)*2 > int64(len(data)) {
		return nil, fmt.Errorf("time key count %d exceeds file size", nkeys)
	}
	keys := make([]string, nkeys)
	for i := range keys {
		if keys[i], err = readString(r); err != nil {
			return nil, fmt.Errorf("reading time key %d: %w", i, err)
		}
	}

	var box extract.Box
	for _, corner := range []*[3]int64{&box.X1, &box.X2} {
		for i := range corner {
			v, err := r.ReadUint64()
			if err != nil {
				return nil, fmt.Errorf("reading box: %w", err)
			}
			corner[i] = int64(v)
		}
	}
	var shape [4]int
	for i := range shape {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("reading shape: %w", err)
		}
		shape[i] = int(v)
	}

	norm := box.Normalize()
	bs := norm.Shape()
	if norm != box || shape != [4]int{int(nkeys), int(bs[0]), int(bs[1]), int(bs[2])} {
		return nil, fmt.Errorf("stored shape %v does not match box %s and %d time keys", shape, box, nkeys)
	}
	rawSize, err := payloadBytes(shape)
	if err != nil {
		return nil, err
	}

	size, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("reading payload length: %w", err)
	}
	if size > uint64(len(data)) {
		return nil, fmt.Errorf("payload length %d exceeds file size", size)
	}
	if err := checkExpansion(codec, size, rawSize); err != nil {
		return nil, err
	}
	payload, err := r.ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	sum, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}

	t, err := extract.NewTensor(variable, keys, box)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(codec, payload, 8*t.Len())
	if err != nil {
		return nil, err
	}
	if xxhash.Sum64(raw) != sum {
		return nil, ErrChecksum
	}
	for i := range t.Data {
		t.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return t, nil
}

// maxExpansion bounds how many bytes one payload byte of each codec can
// decode to.
var maxExpansion = map[Codec]uint64{
	CodecNone: 1,
	CodecLZ4:  255,
	CodecZstd: 1 << 15,
}

// payloadBytes returns the uncompressed payload size of a tensor shape.
func payloadBytes(shape [4]int) (uint64, error) {
	n := uint64(8)
	for _, d := range shape {
		if d < 0 || (d > 0 && n > math.MaxInt/uint64(d)) {
			return 0, fmt.Errorf("tensor shape %v is too large", shape)
		}
		n *= uint64(d)
	}
	return n, nil
}

// checkExpansion rejects a payload of size bytes that cannot decode to
// rawSize bytes with codec.
func checkExpansion(codec Codec, size, rawSize uint64) error {
	ratio, ok := maxExpansion[codec]
	switch {
	case !ok:
		return fmt.Errorf("unsupported codec %s", codec)
	case codec == CodecNone && size != rawSize:
		return fmt.Errorf("raw payload is %d bytes, shape needs %d", size, rawSize)
	case rawSize > 0 && size == 0, size > math.MaxUint64/ratio, rawSize > size*ratio+64:
		return fmt.Errorf("%s payload of %d bytes cannot hold %d bytes", codec, size, rawSize)
	}
	return nil
}

// WriteFile stores t at path in the .tns format.
func WriteFile(path string, t *extract.Tensor, opts ...Option) error {
	data, err := Marshal(t, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing tensor: %w", err)
	}
	return nil
}

// ReadFile loads a .tns file.
func ReadFile(path string) (*extract.Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tensor: %w", err)
	}
	t, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("string of %d bytes is too long", len(s))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func readString(r *binpkg.Reader) (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
