package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// A slab read decodes many chunks back to back, so decompressors are
// pooled.
var (
	zlibReaders sync.Pool
	zstdReaders = sync.Pool{
		New: func() any {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				panic(fmt.Sprintf("creating zstd decoder: %v", err))
			}
			return dec
		},
	}
)

func inflate(in []byte) ([]byte, error) {
	src := bytes.NewReader(in)
	r, ok := zlibReaders.Get().(io.ReadCloser)
	if ok {
		if err := r.(zlib.Resetter).Reset(src, nil); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
	} else {
		var err error
		if r, err = zlib.NewReader(src); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
	}
	defer zlibReaders.Put(r)

	var out bytes.Buffer
	out.Grow(4 * len(in))
	_, err := io.Copy(&out, r)
	r.Close()
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out.Bytes(), nil
}

func unzstd(in []byte) ([]byte, error) {
	dec := zstdReaders.Get().(*zstd.Decoder)
	defer zstdReaders.Put(dec)
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

// unlz4 decodes the LZ4 plugin framing: the big-endian decoded size (8
// bytes) and block size (4 bytes), then each block as a 4-byte compressed
// size and its data. A block whose compressed size equals its decoded
// size is stored raw.
func unlz4(in []byte) ([]byte, error) {
	if len(in) < 12 {
		return nil, fmt.Errorf("lz4: %d bytes is too short for a header", len(in))
	}
	total := binary.BigEndian.Uint64(in)
	block := uint64(binary.BigEndian.Uint32(in[8:]))
	if total > uint64(len(in))*255 {
		return nil, fmt.Errorf("lz4: decoded size %d is implausible for %d input bytes", total, len(in))
	}
	if block == 0 || block > total {
		block = total
	}
	out := make([]byte, total)
	src := in[12:]
	for off := uint64(0); off < total; {
		n := min(block, total-off)
		if len(src) < 4 {
			return nil, fmt.Errorf("lz4: block at %d truncated", off)
		}
		size := uint64(binary.BigEndian.Uint32(src))
		src = src[4:]
		if size > uint64(len(src)) {
			return nil, fmt.Errorf("lz4: block at %d claims %d bytes, %d remain", off, size, len(src))
		}
		dst := out[off : off+n]
		if size == n {
			copy(dst, src[:size])
		} else if got, err := lz4.UncompressBlock(src[:size], dst); err != nil {
			return nil, fmt.Errorf("lz4: block at %d: %w", off, err)
		} else if uint64(got) != n {
			return nil, fmt.Errorf("lz4: block at %d decoded to %d bytes, want %d", off, got, n)
		}
		src = src[size:]
		off += n
	}
	return out, nil
}

// verifyFletcher32 strips the trailing checksum after checking it. Files
// from old library versions store each 16-bit half byte-swapped, so that
// form is accepted too.
func verifyFletcher32(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes is too short for a checksum", len(in))
	}
	data, tail := in[:len(in)-4], in[len(in)-4:]
	stored := binary.LittleEndian.Uint32(tail)
	sum := binpkg.Fletcher32(data)
	swapped := uint32(bits.ReverseBytes16(uint16(sum>>16)))<<16 | uint32(bits.ReverseBytes16(uint16(sum)))
	if stored != sum && stored != swapped {
		return nil, fmt.Errorf("fletcher32: stored %#08x, computed %#08x", stored, sum)
	}
	return data, nil
}

// shuffle regroups bytes so that byte j of every element is contiguous.
// Decoding interleaves them back; a tail shorter than one element is
// stored unchanged.
type shuffle int

func newShuffle(clientData []uint32, elemSize int) Decoder {
	if len(clientData) > 0 && clientData[0] > 0 {
		elemSize = int(clientData[0])
	}
	return shuffle(elemSize)
}

func (s shuffle) Decode(in []byte) ([]byte, error) {
	size := int(s)
	n := 0
	if size > 1 {
		n = len(in) / size
	}
	if n == 0 {
		return in, nil
	}
	out := make([]byte, len(in))
	for j := 0; j < size; j++ {
		plane := in[j*n : (j+1)*n]
		for i, b := range plane {
			out[i*size+j] = b
		}
	}
	copy(out[n*size:], in[n*size:])
	return out, nil
}
