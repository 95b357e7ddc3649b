package tensorio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robert-malhotra/turbslice/extract"
)

// Format is an output file format.
type Format string

const (
	FormatTNS     Format = "tns"
	FormatParquet Format = "parquet"
	FormatHDF5    Format = "h5"
)

// ParseFormat validates a format name. "hdf5" is accepted for h5.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTNS, FormatParquet, FormatHDF5:
		return f, nil
	case "hdf5":
		return FormatHDF5, nil
	default:
		return "", fmt.Errorf("unknown format %q (want tns, parquet or h5)", s)
	}
}

// FormatFromPath guesses the format from the file extension, falling back
// to tns.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet
	case ".h5", ".hdf5":
		return FormatHDF5
	default:
		return FormatTNS
	}
}

// Save writes t to path in the given format. An empty format is guessed
// from the extension.
func Save(path string, format Format, t *extract.Tensor, opts ...Option) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	switch format {
	case FormatTNS:
		return WriteFile(path, t, opts...)
	case FormatParquet:
		return WriteParquet(path, t, opts...)
	case FormatHDF5:
		return WriteHDF5(path, t)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
