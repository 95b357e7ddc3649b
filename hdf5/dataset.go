package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/turbslice/internal/dtype"
	"github.com/robert-malhotra/turbslice/internal/layout"
	"github.com/robert-malhotra/turbslice/internal/message"
	"github.com/robert-malhotra/turbslice/internal/object"
)

// Dataset is an open HDF5 dataset.
type Dataset struct {
	path   string
	space  *message.Dataspace
	elem   *message.Datatype
	layout layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	d := &Dataset{path: p, space: h.Dataspace(), elem: h.Datatype()}
	var err error
	if d.layout, err = layout.New(h.DataLayout(), d.space, d.elem, h.FilterPipeline(), f.reader); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p, err)
	}
	return d, nil
}

func (d *Dataset) Name() string { return path.Base(d.path) }

func (d *Dataset) Path() string { return d.path }

// Shape returns a copy of the dimensions, nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.space.IsScalar() {
		return nil
	}
	return append([]uint64(nil), d.space.Dimensions...)
}

func (d *Dataset) Rank() int { return d.space.Rank() }

func (d *Dataset) NumElements() uint64 { return d.space.NumElements() }

func (d *Dataset) IsScalar() bool { return d.space.IsScalar() }

// ElementSize returns the size of one element in bytes.
func (d *Dataset) ElementSize() int { return int(d.elem.Size) }

// TypeName returns a short element type name such as "float64" or "int32".
func (d *Dataset) TypeName() string { return dtype.Name(d.elem) }

// IsNumeric reports whether the elements convert to float64.
func (d *Dataset) IsNumeric() bool { return dtype.IsNumeric(d.elem) }

// StorageLayout returns compact, contiguous or chunked.
func (d *Dataset) StorageLayout() message.LayoutClass { return d.layout.Class() }

// Read decodes the whole dataset into dest, a pointer to a slice of a
// numeric type or of strings.
func (d *Dataset) Read(dest any) error {
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.Convert(d.elem, raw, d.space.NumElements(), dest)
}

func readAll[T any](d *Dataset) ([]T, error) {
	var out []T
	err := d.Read(&out)
	return out, err
}

func (d *Dataset) ReadFloat64() ([]float64, error) { return readAll[float64](d) }

func (d *Dataset) ReadInt64() ([]int64, error) { return readAll[int64](d) }

func (d *Dataset) ReadString() ([]string, error) { return readAll[string](d) }

// ReadSlice returns the raw row-major bytes of the box of count elements
// per dimension starting at start. Only storage that intersects the box
// is read.
func (d *Dataset) ReadSlice(start, count []uint64) ([]byte, error) {
	if d.space.IsScalar() {
		return nil, fmt.Errorf("%s: selecting from a scalar: %w", d.path, ErrUnsupported)
	}
	data, err := d.layout.ReadSlice(start, count)
	if err != nil {
		return nil, fmt.Errorf("reading slice of %s: %w", d.path, err)
	}
	return data, nil
}

// ReadSliceFloat64 is ReadSlice converted to float64.
func (d *Dataset) ReadSliceFloat64(start, count []uint64) ([]float64, error) {
	raw, err := d.ReadSlice(start, count)
	if err != nil {
		return nil, err
	}
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return dtype.ToFloat64(d.elem, raw, n)
}
