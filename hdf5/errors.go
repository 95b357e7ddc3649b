// Package hdf5 provides a pure Go reader and writer for HDF5 files.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/turbslice/internal/layout"
)

// Common errors
var (
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
	ErrReadOnly    = errors.New("file is not writable")

	// ErrOutOfBounds is returned when a hyperslab selection falls outside
	// the dataset extent.
	ErrOutOfBounds = layout.ErrOutOfBounds
)

// MaxLinkDepth is the maximum number of soft links that can be followed
// in a single path resolution.
const MaxLinkDepth = 100
