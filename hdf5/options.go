package hdf5

import (
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/turbslice/internal/logging"
)

// FileOption configures Open and Create.
type FileOption func(*fileConfig) error

type fileConfig struct {
	offsetSize int
	lengthSize int
	log        *slog.Logger
}

func newFileConfig(opts []FileOption) (*fileConfig, error) {
	c := &fileConfig{offsetSize: 8, lengthSize: 8}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.log == nil {
		c.log = logging.Component("hdf5")
	}
	return c, nil
}

func fieldWidth(what string, n int, dst *int) error {
	switch n {
	case 2, 4, 8:
		*dst = n
		return nil
	}
	return fmt.Errorf("%s size %d: must be 2, 4 or 8", what, n)
}

// WithOffsetSize sets the width of file addresses written by Create.
func WithOffsetSize(n int) FileOption {
	return func(c *fileConfig) error { return fieldWidth("offset", n, &c.offsetSize) }
}

// WithLengthSize sets the width of lengths written by Create.
func WithLengthSize(n int) FileOption {
	return func(c *fileConfig) error { return fieldWidth("length", n, &c.lengthSize) }
}

// WithLogger routes debug records about the file to l.
func WithLogger(l *slog.Logger) FileOption {
	return func(c *fileConfig) error {
		c.log = l
		return nil
	}
}

// DatasetOption configures CreateDataset.
type DatasetOption func(*datasetConfig)

type datasetConfig struct {
	shape  []uint64
	chunks []uint64
}

// WithShape stores the flat data as an array of the given dimensions,
// whose product must equal the element count.
func WithShape(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.shape = dims }
}

// WithChunks stores the dataset in chunks of the given dimensions.
func WithChunks(dims ...uint64) DatasetOption {
	return func(c *datasetConfig) { c.chunks = dims }
}
