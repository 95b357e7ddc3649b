package hdf5

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/turbslice/internal/dtype"
	"github.com/robert-malhotra/turbslice/internal/layout"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// CreateDataset adds a dataset holding data, a flat slice of numbers or
// strings. It is one-dimensional unless WithShape is given, and stored
// contiguously unless WithChunks is given.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkWritable(name); err != nil {
		return nil, err
	}
	var cfg datasetConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	n, err := dtype.Len(data)
	if err != nil {
		return nil, err
	}
	dims := []uint64{uint64(n)}
	if cfg.shape != nil {
		if total := product(cfg.shape); total != uint64(n) {
			return nil, fmt.Errorf("shape %v holds %d elements, data has %d", cfg.shape, total, n)
		}
		dims = cfg.shape
	}
	dt, err := dtype.DatatypeOf(data)
	if err != nil {
		return nil, err
	}
	raw, err := dtype.Encode(dt, data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}

	storage, err := g.store(dims, dt, raw, cfg.chunks)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	addr, err := g.file.writeHeader([]message.Message{message.NewDataspace(dims, nil), dt, storage}, 0)
	if err != nil {
		return nil, fmt.Errorf("dataset %s header: %w", name, err)
	}
	if err := g.link(name, addr); err != nil {
		return nil, err
	}
	return g.file.openDatasetAt(addr, JoinPath(g.path, name))
}

// store writes the raw data and returns the layout message locating it.
func (g *Group) store(dims []uint64, dt *message.Datatype, raw []byte, chunks []uint64) (*message.DataLayout, error) {
	if chunks == nil || len(raw) == 0 {
		addr, err := g.file.writeBlock(raw, dataAlign)
		if err != nil {
			return nil, err
		}
		return message.NewContiguousLayout(addr, uint64(len(raw))), nil
	}
	chunkDims := make([]uint32, len(chunks))
	for i, c := range chunks {
		if c > math.MaxUint32 {
			return nil, fmt.Errorf("chunk dimension %d is too large: %d", i, c)
		}
		chunkDims[i] = uint32(c)
	}
	cw, err := layout.NewChunkWriter(g.file.writer, dims, chunkDims, dt.Size, g.file.allocate)
	if err != nil {
		return nil, err
	}
	return cw.Write(raw)
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
