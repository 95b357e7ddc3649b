package tensorio

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/turbslice/extract"
	"github.com/robert-malhotra/turbslice/hdf5"
)

// WriteHDF5 stores t in a new HDF5 file at path, under a group named after
// the variable:
//
//	/<variable>/data       float64 [T, s0, s1, s2]
//	/<variable>/box        int64 [2, 3], the corners
//	/<variable>/time_keys  strings, absent when T is 0
func WriteHDF5(path string, t *extract.Tensor) error {
	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}
	if err := writeTensorGroup(f.Root(), t); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func writeTensorGroup(root *hdf5.Group, t *extract.Tensor) error {
	g, err := root.CreateGroup(t.Variable)
	if err != nil {
		return err
	}

	shape := t.Shape()
	dims := make([]uint64, len(shape))
	for i, d := range shape {
		dims[i] = uint64(d)
	}
	if _, err := g.CreateDataset("data", t.Data, hdf5.WithShape(dims...)); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	box := []int64{t.Box.X1[0], t.Box.X1[1], t.Box.X1[2], t.Box.X2[0], t.Box.X2[1], t.Box.X2[2]}
	if _, err := g.CreateDataset("box", box, hdf5.WithShape(2, 3)); err != nil {
		return fmt.Errorf("box: %w", err)
	}

	if len(t.TimeKeys) > 0 {
		if _, err := g.CreateDataset("time_keys", t.TimeKeys); err != nil {
			return fmt.Errorf("time_keys: %w", err)
		}
	}
	return nil
}

// ReadHDF5 loads the tensor stored for variable by WriteHDF5.
func ReadHDF5(path, variable string) (*extract.Tensor, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := f.Root().OpenGroup(variable)
	if err != nil {
		return nil, err
	}

	boxDs, err := g.OpenDataset("box")
	if err != nil {
		return nil, err
	}
	corners, err := boxDs.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("reading box: %w", err)
	}
	if len(corners) != 6 {
		return nil, fmt.Errorf("box holds %d values, want 6", len(corners))
	}
	box := extract.Box{
		X1: [3]int64{corners[0], corners[1], corners[2]},
		X2: [3]int64{corners[3], corners[4], corners[5]},
	}

	var keys []string
	keysDs, err := g.OpenDataset("time_keys")
	switch {
	case errors.Is(err, hdf5.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if keys, err = keysDs.ReadString(); err != nil {
			return nil, fmt.Errorf("reading time keys: %w", err)
		}
	}

	t, err := extract.NewTensor(variable, keys, box)
	if err != nil {
		return nil, err
	}
	dataDs, err := g.OpenDataset("data")
	if err != nil {
		return nil, err
	}
	data, err := dataDs.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	if len(data) != t.Len() {
		return nil, fmt.Errorf("data holds %d values, box and time keys need %d", len(data), t.Len())
	}
	copy(t.Data, data)
	return t, nil
}
