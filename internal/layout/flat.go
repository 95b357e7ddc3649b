package layout

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// Flat is a dataset stored as one row-major block, either contiguous in
// the file or compact inside the object header.
type Flat struct {
	class    message.LayoutClass
	r        *binary.Reader
	addr     uint64
	size     uint64
	dims     []uint64
	elemSize uint64
}

// NewContiguous reads the block at the layout's address. A layout without
// a size is sized from the dataspace and datatype.
func NewContiguous(msg *message.DataLayout, space *message.Dataspace, dt *message.Datatype, r *binary.Reader) *Flat {
	size := msg.Size
	if size == 0 {
		size = dataSize(space, dt)
	}
	return &Flat{
		class:    message.LayoutContiguous,
		r:        r,
		addr:     msg.Address,
		size:     size,
		dims:     space.Dimensions,
		elemSize: uint64(dt.Size),
	}
}

// NewCompact reads the data carried in the layout message itself.
func NewCompact(msg *message.DataLayout, space *message.Dataspace, dt *message.Datatype) *Flat {
	return &Flat{
		class:    message.LayoutCompact,
		r:        binary.NewReader(bytes.NewReader(msg.CompactData), binary.DefaultConfig()),
		size:     uint64(len(msg.CompactData)),
		dims:     space.Dimensions,
		elemSize: uint64(dt.Size),
	}
}

func (f *Flat) Class() message.LayoutClass { return f.class }

// Size returns the stored size in bytes.
func (f *Flat) Size() uint64 { return f.size }

func (f *Flat) unallocated() bool {
	return f.class == message.LayoutContiguous && f.r.IsUndefinedOffset(f.addr)
}

// Read returns the whole block. Storage that was never allocated reads as
// zeros.
func (f *Flat) Read() ([]byte, error) {
	if f.unallocated() {
		return make([]byte, f.size), nil
	}
	if f.size == 0 {
		return []byte{}, nil
	}
	data, err := f.r.At(int64(f.addr)).ReadBytes(int(f.size))
	if err != nil {
		return nil, fmt.Errorf("reading %s data: %w", f.class, err)
	}
	return data, nil
}

// ReadSlice reads only the bytes of the selection. Trailing dimensions
// selected in full merge into one run, so a selection of whole rows is a
// single read.
func (f *Flat) ReadSlice(start, count []uint64) ([]byte, error) {
	if len(f.dims) == 0 {
		if len(start) == 0 && len(count) == 0 {
			return f.Read()
		}
		return nil, fmt.Errorf("cannot select from a scalar dataset")
	}
	if err := checkSelection(f.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*f.elemSize)
	if len(out) == 0 || f.unallocated() {
		return out, nil
	}
	if need := product(f.dims) * f.elemSize; f.size < need {
		return nil, fmt.Errorf("%s data is %d bytes, dataset needs %d", f.class, f.size, need)
	}

	runDim := len(f.dims) - 1
	for runDim > 0 && start[runDim] == 0 && count[runDim] == f.dims[runDim] {
		runDim--
	}
	stride := strides(f.dims, f.elemSize)
	run := count[runDim] * stride[runDim]

	idx := make([]uint64, runDim)
	for dst := uint64(0); dst < uint64(len(out)); dst += run {
		src := start[runDim] * stride[runDim]
		for d, i := range idx {
			src += (start[d] + i) * stride[d]
		}
		buf, err := f.r.At(int64(f.addr + src)).ReadBytes(int(run))
		if err != nil {
			return nil, fmt.Errorf("reading %s run at %d: %w", f.class, src, err)
		}
		copy(out[dst:], buf)

		for d := runDim - 1; d >= 0; d-- {
			if idx[d]++; idx[d] < count[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out, nil
}
