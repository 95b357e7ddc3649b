// Package layout reads dataset bytes from each HDF5 storage layout and
// writes chunked data with its index.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// ErrOutOfBounds is returned when a selection does not fit inside the dataset extent.
var ErrOutOfBounds = errors.New("selection out of bounds")

// Layout reads the raw bytes of a dataset.
type Layout interface {
	Read() ([]byte, error)

	// ReadSlice returns the box of count elements per dimension starting at
	// start, row-major.
	ReadSlice(start, count []uint64) ([]byte, error)

	Class() message.LayoutClass
}

// New picks the reader for a layout message.
func New(msg *message.DataLayout, space *message.Dataspace, dt *message.Datatype, pipeline *message.FilterPipeline, r *binary.Reader) (Layout, error) {
	if msg == nil || space == nil || dt == nil {
		return nil, fmt.Errorf("dataset is missing its layout, dataspace or datatype")
	}
	switch msg.Class {
	case message.LayoutCompact:
		return NewCompact(msg, space, dt), nil
	case message.LayoutContiguous:
		return NewContiguous(msg, space, dt, r), nil
	case message.LayoutChunked:
		return NewChunked(msg, space, dt, pipeline, r)
	}
	return nil, fmt.Errorf("%s storage is not supported", msg.Class)
}

func dataSize(dataspace *message.Dataspace, datatype *message.Datatype) uint64 {
	if dataspace == nil || datatype == nil {
		return 0
	}
	return dataspace.NumElements() * uint64(datatype.Size)
}

// checkSelection validates start/count against the dataset dimensions.
func checkSelection(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("start and count must have %d dimensions, got %d and %d",
			len(dims), len(start), len(count))
	}
	for d := range dims {
		if start[d] > dims[d] || count[d] > dims[d]-start[d] {
			return fmt.Errorf("%w: dimension %d, start=%d, count=%d, size=%d",
				ErrOutOfBounds, d, start[d], count[d], dims[d])
		}
	}
	return nil
}

func product(xs []uint64) uint64 {
	n := uint64(1)
	for _, x := range xs {
		n *= x
	}
	return n
}

// strides returns row-major byte strides for an array of the given shape.
func strides(shape []uint64, elementSize uint64) []uint64 {
	s := make([]uint64, len(shape))
	if len(shape) == 0 {
		return s
	}
	s[len(shape)-1] = elementSize
	for d := len(shape) - 2; d >= 0; d-- {
		s[d] = s[d+1] * shape[d+1]
	}
	return s
}

// region describes a box-shaped copy between two row-major buffers.
// srcOrigin and dstOrigin are element coordinates of the box corner in each
// buffer; extent is the box size.
type region struct {
	srcStrides, dstStrides []uint64
	srcOrigin, dstOrigin   []uint64
	extent                 []uint64
	elementSize            uint64
}

// copyRegion copies the box described by r from src into dst. The innermost
// dimension is copied as a single run.
func copyRegion(dst, src []byte, r region) {
	ndims := len(r.extent)
	if ndims == 0 {
		copy(dst, src[:r.elementSize])
		return
	}
	for _, e := range r.extent {
		if e == 0 {
			return
		}
	}

	var srcBase, dstBase uint64
	for d := 0; d < ndims; d++ {
		srcBase += r.srcOrigin[d] * r.srcStrides[d]
		dstBase += r.dstOrigin[d] * r.dstStrides[d]
	}
	copyRegionDim(dst, src, r, srcBase, dstBase, 0)
}

func copyRegionDim(dst, src []byte, r region, srcOff, dstOff uint64, dim int) {
	if dim == len(r.extent)-1 {
		n := r.extent[dim] * r.elementSize
		if srcOff+n <= uint64(len(src)) && dstOff+n <= uint64(len(dst)) {
			copy(dst[dstOff:dstOff+n], src[srcOff:srcOff+n])
		}
		return
	}
	for i := uint64(0); i < r.extent[dim]; i++ {
		copyRegionDim(dst, src, r,
			srcOff+i*r.srcStrides[dim],
			dstOff+i*r.dstStrides[dim],
			dim+1)
	}
}
