// Package extract cuts a 3-D bounding box out of every time step of a store
// variable and stacks the results into one [T, s0, s1, s2] tensor.
package extract

import (
	"context"
	"fmt"

	"github.com/robert-malhotra/turbslice/hdf5"
	"github.com/robert-malhotra/turbslice/store"
)

// Request names one extraction: a variable, the time keys in output order
// and the box corners.
type Request struct {
	Variable string
	TimeKeys []string
	X1, X2   [3]int64
}

// Box returns the request's bounding box.
func (r Request) Box() Box {
	return Box{X1: r.X1, X2: r.X2}
}

// Extract reads the box [x1, x2] (inclusive on both ends, axes normalized
// independently) from the dataset variable/timeKey for every key in
// timeKeys and returns the stacked tensor. Slot t of the result holds
// timeKeys[t].
//
// Every slice is checked against its dataset before it is read: a box that
// does not fit fails with a *store.ShapeMismatchError, a missing dataset with
// a *store.NotFoundError. Any failure aborts the whole extraction.
func Extract(ctx context.Context, s *store.Store, variable string, timeKeys []string, x1, x2 [3]int64, opts ...Option) (*Tensor, error) {
	o := buildOptions(opts)
	box := Box{X1: x1, X2: x2}.Normalize()

	if reason := box.checkOrigin(); reason != "" {
		return nil, &store.ShapeMismatchError{Path: variable, Lo: box.X1, Hi: box.X2, Reason: reason}
	}

	if len(timeKeys) == 0 {
		return NewTensor(variable, timeKeys, box)
	}
	log := o.log.With("variable", variable, "box", box.String())
	start, count := box.selection()

	var out *Tensor
	for t, key := range timeKeys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := openSlice(s, variable, key, box)
		if err != nil {
			return nil, err
		}
		// allocated only once the box fits a dataset
		if out == nil {
			if out, err = NewTensor(variable, timeKeys, box); err != nil {
				return nil, err
			}
		}

		if Reports(t, len(timeKeys)) {
			ev := Event{Index: t, Total: len(timeKeys), Variable: variable, TimeKey: key, Shape: ds.Shape()}
			o.progress(ev)
			log.Debug("reading slice", "index", t, "time_key", key)
		}

		vals, err := ds.ReadSliceFloat64(start, count)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", ds.Path(), err)
		}
		copy(out.Slot(t), vals)
	}

	log.Debug("extraction complete", "slices", len(timeKeys), "shape", out.Shape())
	return out, nil
}

// openSlice opens variable/key and checks that box fits inside it.
func openSlice(s *store.Store, variable, key string, box Box) (*hdf5.Dataset, error) {
	ds, err := s.TimeDataset(variable, key)
	if err != nil {
		return nil, err
	}
	shape := ds.Shape()
	if reason := box.check(shape); reason != "" {
		return nil, &store.ShapeMismatchError{
			Path:   ds.Path(),
			Shape:  shape,
			Lo:     box.X1,
			Hi:     box.X2,
			Reason: reason,
		}
	}
	return ds, nil
}

// ExtractFile opens the store at path, runs one request and closes the
// store again on every path.
func ExtractFile(ctx context.Context, path string, req Request, opts ...Option) (*Tensor, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return Extract(ctx, s, req.Variable, req.TimeKeys, req.X1, req.X2, opts...)
}
