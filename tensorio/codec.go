package tensorio

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the payload compression of a .tns file.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps "zstd", "lz4" or "none" to a Codec. The empty string
// selects zstd.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "zstd", "":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	case "none":
		return CodecNone, nil
	default:
		return 0, fmt.Errorf("unknown codec %q (want zstd, lz4 or none)", s)
	}
}

// zstd decoders are built to be reused after warmup.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("creating zstd decoder: %v", err))
		}
		return dec
	},
}

// compress encodes data with c. A level of 0 picks the codec default. The
// returned codec differs from c when the payload did not compress.
func compress(c Codec, level int, data []byte) (Codec, []byte, error) {
	if len(data) == 0 {
		return CodecNone, nil, nil
	}
	switch c {
	case CodecNone:
		return CodecNone, data, nil

	case CodecZstd:
		encLevel := zstd.SpeedDefault
		if level > 0 {
			encLevel = zstd.EncoderLevelFromZstd(level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderCRC(false))
		if err != nil {
			return 0, nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		defer enc.Close()
		return CodecZstd, enc.EncodeAll(data, nil), nil

	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		var n int
		var err error
		if level > 0 {
			hc := lz4.CompressorHC{Level: lz4Level(level)}
			n, err = hc.CompressBlock(data, dst)
		} else {
			var fast lz4.Compressor
			n, err = fast.CompressBlock(data, dst)
		}
		if err != nil {
			return 0, nil, fmt.Errorf("lz4 compression: %w", err)
		}
		if n == 0 {
			return CodecNone, data, nil
		}
		return CodecLZ4, dst[:n], nil

	default:
		return 0, nil, fmt.Errorf("unsupported codec %s", c)
	}
}

// decompress decodes a payload that expands to exactly size bytes.
func decompress(c Codec, data []byte, size int) ([]byte, error) {
	var out []byte
	switch c {
	case CodecNone:
		out = data

	case CodecZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(dec)
		var err error
		out, err = dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}

	case CodecLZ4:
		out = make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		out = out[:n]

	default:
		return nil, fmt.Errorf("unsupported codec %s", c)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%s payload expands to %d bytes, want %d", c, len(out), size)
	}
	return out, nil
}

// lz4Level maps 1..9 onto the HC compression levels.
func lz4Level(level int) lz4.CompressionLevel {
	level = min(max(level, 1), 9)
	return lz4.CompressionLevel(1 << (7 + level))
}
