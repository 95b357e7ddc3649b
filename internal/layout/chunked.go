package layout

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/btree"
	"github.com/robert-malhotra/turbslice/internal/filter"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// Chunked represents chunked storage layout.
type Chunked struct {
	layout      *message.DataLayout
	pipeline    *filter.Pipeline
	reader      *binary.Reader
	dims        []uint64
	chunkDims   []uint64
	elementSize uint64
}

// NewChunked creates a new chunked layout handler.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	pipeline, err := filter.NewPipeline(filterPipeline, int(datatype.Size))
	if err != nil {
		return nil, fmt.Errorf("creating filter pipeline: %w", err)
	}

	dims := dataspace.Dimensions
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	// The stored chunk dims carry a trailing element-size entry.
	if len(layout.ChunkDims) < len(dims) {
		return nil, fmt.Errorf("chunked layout has %d chunk dimensions for rank %d",
			len(layout.ChunkDims), len(dims))
	}
	chunkDims := make([]uint64, len(dims))
	for d := range chunkDims {
		if layout.ChunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		chunkDims[d] = uint64(layout.ChunkDims[d])
	}

	return &Chunked{
		layout:      layout,
		pipeline:    pipeline,
		reader:      reader,
		dims:        dims,
		chunkDims:   chunkDims,
		elementSize: uint64(datatype.Size),
	}, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// Read reads the whole dataset.
func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(make([]uint64, len(c.dims)), c.dims)
}

// ReadSlice reads a hyperslab from chunked storage. Only chunks that
// intersect the selection are read and decoded.
func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*c.elementSize)
	if len(out) == 0 {
		return out, nil
	}

	entries, err := c.entries()
	if err != nil {
		return nil, err
	}

	ndims := len(c.dims)
	chunkStrides := strides(c.chunkDims, c.elementSize)
	outStrides := strides(count, c.elementSize)
	lo := make([]uint64, ndims)
	hi := make([]uint64, ndims)

	for _, entry := range entries {
		if entry.Address == 0 || c.reader.IsUndefinedOffset(entry.Address) {
			continue
		}
		if !c.overlap(entry.Offset, start, count, lo, hi) {
			continue
		}

		chunk, err := c.readChunk(entry)
		if err != nil {
			return nil, fmt.Errorf("chunk at %v: %w", entry.Offset, err)
		}

		r := region{
			srcStrides:  chunkStrides,
			dstStrides:  outStrides,
			srcOrigin:   make([]uint64, ndims),
			dstOrigin:   make([]uint64, ndims),
			extent:      make([]uint64, ndims),
			elementSize: c.elementSize,
		}
		for d := 0; d < ndims; d++ {
			r.srcOrigin[d] = lo[d] - entry.Offset[d]
			r.dstOrigin[d] = lo[d] - start[d]
			r.extent[d] = hi[d] - lo[d]
		}
		copyRegion(out, chunk, r)
	}

	return out, nil
}

// overlap intersects the chunk at offset with the selection, writing the
// intersection bounds into lo/hi. It reports whether they intersect.
func (c *Chunked) overlap(offset, start, count, lo, hi []uint64) bool {
	if len(offset) < len(c.dims) {
		return false
	}
	for d := range c.dims {
		cEnd := min(offset[d]+c.chunkDims[d], c.dims[d])
		sEnd := start[d] + count[d]
		lo[d] = max(offset[d], start[d])
		hi[d] = min(cEnd, sEnd)
		if lo[d] >= hi[d] {
			return false
		}
	}
	return true
}

func (c *Chunked) chunkBytes() uint64 {
	return product(c.chunkDims) * c.elementSize
}

// readChunk reads one chunk from disk and runs it through the filter pipeline.
func (c *Chunked) readChunk(entry btree.ChunkEntry) ([]byte, error) {
	size := uint64(entry.Size)
	if size == 0 {
		size = c.chunkBytes()
	}
	data, err := c.reader.At(int64(entry.Address)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	if !c.pipeline.Empty() {
		data, err = c.pipeline.Decode(data, entry.FilterMask)
		if err != nil {
			return nil, fmt.Errorf("decoding: %w", err)
		}
	}
	if uint64(len(data)) < c.chunkBytes() {
		return nil, fmt.Errorf("decoded chunk is %d bytes, want %d", len(data), c.chunkBytes())
	}
	return data, nil
}

// entries lists the chunks of the dataset using whatever index the layout declares.
func (c *Chunked) entries() ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if addr == 0 || c.reader.IsUndefinedOffset(addr) {
		return nil, nil
	}
	ndims := len(c.dims)

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexBTreeV1:
		entries, err := btree.ReadChunkIndex(c.reader, addr, ndims)
		if err != nil {
			return nil, fmt.Errorf("reading B-tree chunk index: %w", err)
		}
		return entries, nil

	case message.ChunkIndexSingleChunk:
		entry := btree.ChunkEntry{
			Offset:     make([]uint64, ndims),
			Address:    addr,
			FilterMask: c.layout.FilterMask,
		}
		if c.layout.FilteredChunkSize > 0 {
			entry.Size = uint32(c.layout.FilteredChunkSize)
		}
		return []btree.ChunkEntry{entry}, nil

	case message.ChunkIndexImplicit:
		n := c.numChunks()
		entries := make([]btree.ChunkEntry, n)
		for i := range entries {
			entries[i] = btree.ChunkEntry{
				Offset:  c.chunkOffset(uint64(i)),
				Address: addr + uint64(i)*c.chunkBytes(),
			}
		}
		return entries, nil

	case message.ChunkIndexFixedArray:
		entries, err := c.readFixedArray(addr)
		if err != nil {
			return nil, fmt.Errorf("reading fixed array chunk index: %w", err)
		}
		return entries, nil

	case message.ChunkIndexExtensibleArray:
		entries, err := c.readExtensibleArray(addr)
		if err != nil {
			return nil, fmt.Errorf("reading extensible array chunk index: %w", err)
		}
		return entries, nil

	case message.ChunkIndexBTreeV2:
		entries, err := btree.ReadChunkIndexV2(c.reader, addr, c.chunkDims)
		if err != nil {
			return nil, fmt.Errorf("reading B-tree v2 chunk index: %w", err)
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("unsupported chunk index type: %d", c.layout.ChunkIndexType)
	}
}

// numChunks returns the number of chunks covering the dataset extent.
func (c *Chunked) numChunks() uint64 {
	n := uint64(1)
	for d := range c.dims {
		n *= ceilDiv(c.dims[d], c.chunkDims[d])
	}
	return n
}

// chunkOffset maps a linear row-major chunk index to the element
// coordinates of the chunk's first element.
func (c *Chunked) chunkOffset(linear uint64) []uint64 {
	offset := make([]uint64, len(c.dims))
	for d := len(c.dims) - 1; d >= 0; d-- {
		n := ceilDiv(c.dims[d], c.chunkDims[d])
		offset[d] = (linear % n) * c.chunkDims[d]
		linear /= n
	}
	return offset
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}
