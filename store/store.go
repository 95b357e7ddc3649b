// Package store gives ordered, named access to a turbulence store: an HDF5
// file whose root holds one group per variable, each group holding one
// dataset per time key.
//
//	s, err := store.Open("run42.h5")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	keys, err := s.TimeKeys("velocity")
//
// Listings follow storage order. Positional accessors (VariableAt,
// TimeKeysAt, ...) index into those listings. A Store is not safe for
// concurrent use; open one per goroutine.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/robert-malhotra/turbslice/hdf5"
	"github.com/robert-malhotra/turbslice/internal/logging"
)

// Store is an open turbulence store.
type Store struct {
	path string
	file *hdf5.File
	log  *slog.Logger
}

// Variable is one variable group of a store.
type Variable struct {
	name  string
	group *hdf5.Group
}

// Open opens the store at path read-only. A missing file yields a
// *NotFoundError, anything else that prevents opening an *OpenError.
func Open(path string) (*Store, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, &OpenError{Path: path, Err: err}
	}
	log := logging.Component("store").With("path", path)
	log.Debug("store opened", "superblock", f.Version())
	return &Store{path: path, file: f, log: log}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.file.Close()
}

// Path returns the file path the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// File exposes the underlying HDF5 file.
func (s *Store) File() *hdf5.File {
	return s.file
}

// VariableKeys lists the root keys in storage order.
func (s *Store) VariableKeys() ([]string, error) {
	keys, err := s.file.Root().Members()
	if err != nil {
		return nil, fmt.Errorf("listing variables: %w", err)
	}
	return keys, nil
}

// Variables returns the variables in the same order as VariableKeys.
func (s *Store) Variables() ([]*Variable, error) {
	keys, err := s.VariableKeys()
	if err != nil {
		return nil, err
	}
	vars := make([]*Variable, len(keys))
	for i, key := range keys {
		if vars[i], err = s.Variable(key); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

// Variable looks a variable up by name.
func (s *Store) Variable(name string) (*Variable, error) {
	g, err := s.file.OpenGroup(name)
	if err != nil {
		return nil, s.translate(name, err)
	}
	return &Variable{name: name, group: g}, nil
}

// VariableAt returns the index-th variable in storage order.
func (s *Store) VariableAt(index int) (*Variable, error) {
	keys, err := s.VariableKeys()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(keys) {
		return nil, &IndexError{What: "variable", Index: index, Len: len(keys)}
	}
	return s.Variable(keys[index])
}

// TimeKeys lists the time keys of the named variable in storage order.
func (s *Store) TimeKeys(variable string) ([]string, error) {
	v, err := s.Variable(variable)
	if err != nil {
		return nil, err
	}
	return v.TimeKeys()
}

// TimeKeysAt lists the time keys of the index-th variable.
func (s *Store) TimeKeysAt(index int) ([]string, error) {
	v, err := s.VariableAt(index)
	if err != nil {
		return nil, err
	}
	return v.TimeKeys()
}

// TimeDatasetsAt returns the time datasets of the index-th variable.
func (s *Store) TimeDatasetsAt(index int) ([]*hdf5.Dataset, error) {
	v, err := s.VariableAt(index)
	if err != nil {
		return nil, err
	}
	return v.TimeDatasets()
}

// TimeDatasetAt returns the timeIndex-th dataset of the index-th variable.
func (s *Store) TimeDatasetAt(index, timeIndex int) (*hdf5.Dataset, error) {
	v, err := s.VariableAt(index)
	if err != nil {
		return nil, err
	}
	return v.TimeDatasetAt(timeIndex)
}

// TimeDataset opens the dataset at variable/timeKey.
func (s *Store) TimeDataset(variable, timeKey string) (*hdf5.Dataset, error) {
	p := variable + "/" + timeKey
	ds, err := s.file.OpenDataset(p)
	if err != nil {
		return nil, s.translate(p, err)
	}
	return ds, nil
}

// translate maps engine lookup failures onto the store error taxonomy.
func (s *Store) translate(p string, err error) error {
	if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) || errors.Is(err, hdf5.ErrNotDataset) {
		return &NotFoundError{Path: p, Err: err}
	}
	return fmt.Errorf("%s in %s: %w", p, s.path, err)
}

// Name returns the variable key.
func (v *Variable) Name() string {
	return v.name
}

// TimeKeys lists the variable's time keys in storage order.
func (v *Variable) TimeKeys() ([]string, error) {
	keys, err := v.group.Members()
	if err != nil {
		return nil, fmt.Errorf("listing time keys of %s: %w", v.name, err)
	}
	return keys, nil
}

// TimeDatasets returns the variable's datasets in time key order.
func (v *Variable) TimeDatasets() ([]*hdf5.Dataset, error) {
	keys, err := v.TimeKeys()
	if err != nil {
		return nil, err
	}
	out := make([]*hdf5.Dataset, len(keys))
	for i, key := range keys {
		if out[i], err = v.TimeDataset(key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TimeDataset opens the dataset for one time key.
func (v *Variable) TimeDataset(key string) (*hdf5.Dataset, error) {
	ds, err := v.group.OpenDataset(key)
	if err != nil {
		p := v.name + "/" + key
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
			return nil, &NotFoundError{Path: p, Err: err}
		}
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	return ds, nil
}

// TimeDatasetAt opens the index-th time dataset.
func (v *Variable) TimeDatasetAt(index int) (*hdf5.Dataset, error) {
	keys, err := v.TimeKeys()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(keys) {
		return nil, &IndexError{What: "time", Index: index, Len: len(keys)}
	}
	return v.TimeDataset(keys[index])
}

// ListVariableKeys opens the store at path, lists its variable keys and
// closes it again.
func ListVariableKeys(path string) ([]string, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.VariableKeys()
}

// ListTimeKeys opens the store at path, lists the time keys of the
// index-th variable and closes it again.
func ListTimeKeys(path string, index int) ([]string, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.TimeKeysAt(index)
}
