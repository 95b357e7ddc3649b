package layout

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// ChunkWriter handles writing chunked dataset data and indices.
// Chunks are written unfiltered.
type ChunkWriter struct {
	w           *binpkg.Writer
	dims        []uint64
	chunkDims   []uint64
	elementSize uint64
	allocate    func(size int64) uint64
}

// NewChunkWriter creates a new chunk writer for a dataset of the given
// dimensions.
func NewChunkWriter(w *binpkg.Writer, dims []uint64, chunkDims []uint32, elementSize uint32, allocate func(size int64) uint64) (*ChunkWriter, error) {
	if len(chunkDims) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunkDims), len(dims))
	}
	cd := make([]uint64, len(chunkDims))
	for i, d := range chunkDims {
		if d == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", i)
		}
		cd[i] = uint64(d)
	}
	return &ChunkWriter{
		w:           w,
		dims:        dims,
		chunkDims:   cd,
		elementSize: uint64(elementSize),
		allocate:    allocate,
	}, nil
}

// ChunkSize returns the size in bytes of one chunk.
func (cw *ChunkWriter) ChunkSize() uint64 {
	return product(cw.chunkDims) * cw.elementSize
}

// NumChunks returns the number of chunks covering the dataset.
func (cw *ChunkWriter) NumChunks() uint64 {
	n := uint64(1)
	for d := range cw.dims {
		n *= ceilDiv(cw.dims[d], cw.chunkDims[d])
	}
	return n
}

// Split cuts row-major data into chunks, in row-major chunk order.
// Edge chunks are padded with zeros to the full chunk size.
func (cw *ChunkWriter) Split(data []byte) [][]byte {
	ndims := len(cw.dims)
	srcStrides := strides(cw.dims, cw.elementSize)
	dstStrides := strides(cw.chunkDims, cw.elementSize)
	layout := &Chunked{dims: cw.dims, chunkDims: cw.chunkDims}

	chunks := make([][]byte, cw.NumChunks())
	for i := range chunks {
		offset := layout.chunkOffset(uint64(i))
		extent := make([]uint64, ndims)
		for d := range extent {
			extent[d] = min(cw.chunkDims[d], cw.dims[d]-offset[d])
		}
		chunks[i] = make([]byte, cw.ChunkSize())
		copyRegion(chunks[i], data, region{
			srcStrides:  srcStrides,
			dstStrides:  dstStrides,
			srcOrigin:   offset,
			dstOrigin:   make([]uint64, ndims),
			extent:      extent,
			elementSize: cw.elementSize,
		})
	}
	return chunks
}

// WriteChunks writes multiple chunks and returns their addresses.
func (cw *ChunkWriter) WriteChunks(chunks [][]byte) ([]uint64, error) {
	addrs := make([]uint64, len(chunks))
	for i, chunk := range chunks {
		addrs[i] = cw.allocate(int64(len(chunk)))
		if err := cw.w.At(int64(addrs[i])).WriteBytes(chunk); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}
	return addrs, nil
}

// Write stores data as chunks and returns the layout message that locates
// them. A dataset that fits one chunk uses the single chunk index, anything
// larger a fixed array.
func (cw *ChunkWriter) Write(data []byte) (*message.DataLayout, error) {
	want := product(cw.dims) * cw.elementSize
	if uint64(len(data)) != want {
		return nil, fmt.Errorf("data is %d bytes, dataset needs %d", len(data), want)
	}
	chunkDims := make([]uint32, len(cw.chunkDims))
	for i, d := range cw.chunkDims {
		chunkDims[i] = uint32(d)
	}

	addrs, err := cw.WriteChunks(cw.Split(data))
	if err != nil {
		return nil, err
	}

	if len(addrs) == 1 {
		msg := message.NewChunkedLayout(chunkDims, uint32(cw.elementSize), message.ChunkIndexSingleChunk)
		msg.ChunkIndexAddr = addrs[0]
		return msg, nil
	}

	pageBits := uint8(message.DefaultPageBits)
	for uint64(len(addrs)) > uint64(1)<<pageBits {
		pageBits++
	}
	indexAddr, err := cw.WriteFixedArrayIndex(addrs, pageBits)
	if err != nil {
		return nil, fmt.Errorf("writing fixed array index: %w", err)
	}
	msg := message.NewChunkedLayout(chunkDims, uint32(cw.elementSize), message.ChunkIndexFixedArray)
	msg.ChunkIndexAddr = indexAddr
	msg.PageBits = pageBits
	return msg, nil
}

// WriteFixedArrayIndex writes an unpaged fixed array index for unfiltered
// chunks and returns the header address. pageBits must be large enough for
// all entries to fit one page.
func (cw *ChunkWriter) WriteFixedArrayIndex(chunkAddrs []uint64, pageBits uint8) (uint64, error) {
	n := len(chunkAddrs)
	if n == 0 {
		return 0, fmt.Errorf("no chunks to index")
	}
	if uint64(n) > uint64(1)<<pageBits {
		return 0, fmt.Errorf("%d entries do not fit one page of 2^%d", n, pageBits)
	}
	offsetSize := cw.w.OffsetSize()
	lengthSize := cw.w.LengthSize()

	// signature, version, client ID, entry size, page bits, max entries,
	// data block address, checksum
	headerSize := 4 + 4 + lengthSize + offsetSize + 4
	headerAddr := cw.allocate(int64(headerSize))

	// signature, version, client ID, header address, entries, checksum
	blockSize := 4 + 2 + offsetSize + n*offsetSize + 4
	blockAddr := cw.allocate(int64(blockSize))

	block := make([]byte, 0, blockSize)
	block = append(block, "FADB"...)
	block = append(block, 0, 0)
	block = appendUintN(block, headerAddr, offsetSize)
	for _, addr := range chunkAddrs {
		block = appendUintN(block, addr, offsetSize)
	}
	block = binary.LittleEndian.AppendUint32(block, binpkg.Lookup3Checksum(block))
	if err := cw.w.At(int64(blockAddr)).WriteBytes(block); err != nil {
		return 0, err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, "FAHD"...)
	header = append(header, 0, 0, byte(offsetSize), pageBits)
	header = appendUintN(header, uint64(n), lengthSize)
	header = appendUintN(header, blockAddr, offsetSize)
	header = binary.LittleEndian.AppendUint32(header, binpkg.Lookup3Checksum(header))
	if err := cw.w.At(int64(headerAddr)).WriteBytes(header); err != nil {
		return 0, err
	}

	return headerAddr, nil
}

func appendUintN(b []byte, v uint64, size int) []byte {
	for i := 0; i < size; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
