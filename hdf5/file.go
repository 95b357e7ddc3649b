package hdf5

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/robert-malhotra/turbslice/internal/alloc"
	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/object"
	"github.com/robert-malhotra/turbslice/internal/superblock"
)

// File is an HDF5 file opened for reading, or created for writing.
type File struct {
	path   string
	osFile *os.File
	sb     *superblock.Superblock
	reader *binary.Reader
	root   *Group
	log    *slog.Logger
	closed bool

	// set by Create only
	writer *binary.Writer
	space  *alloc.Allocator
}

// Open opens an existing HDF5 file read-only.
func Open(path string, opts ...FileOption) (*File, error) {
	cfg, err := newFileConfig(opts)
	if err != nil {
		return nil, err
	}
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	f, err := open(path, osFile, cfg.log)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	return f, nil
}

func open(path string, osFile *os.File, log *slog.Logger) (*File, error) {
	sb, err := superblock.Read(osFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotHDF5, err)
	}
	// Addresses count from the base address, past any user block.
	var src io.ReaderAt = osFile
	if base := int64(sb.BaseAddress); base > 0 {
		src = io.NewSectionReader(osFile, base, math.MaxInt64-base)
	}
	f := &File{
		path:   path,
		osFile: osFile,
		sb:     sb,
		reader: binary.NewReader(src, sb.ReaderConfig()),
		log:    log.With("file", path),
	}
	if f.root, err = f.openGroupAt(sb.RootGroupAddress, "/"); err != nil {
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.log.Debug("opened", "superblock", sb.Version, "offset_size", sb.OffsetSize)
	return f, nil
}

// Close releases the file, flushing it first if it was created.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.Flush(); err != nil {
		f.osFile.Close()
		return err
	}
	return f.osFile.Close()
}

func (f *File) Root() *Group { return f.root }

func (f *File) Path() string { return f.path }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.sb.Version) }

// IsWritable reports whether the file was made by Create.
func (f *File) IsWritable() bool { return f.writer != nil }

func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// Object returns the *Group or *Dataset at path.
func (f *File) Object(path string) (any, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.Object(path)
}

func (f *File) openGroupAt(addr uint64, path string) (*Group, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", path, err)
	}
	return &Group{file: f, path: path, header: h, addr: addr}, nil
}

func (f *File) openDatasetAt(addr uint64, path string) (*Dataset, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return newDataset(f, path, h)
}

// locate resolves an absolute path from the root. Soft links met on the
// way share the visited set.
func (f *File) locate(abs string, visited map[string]bool) (*target, error) {
	g := f.root
	parts := SplitPath(abs)
	if len(parts) == 0 {
		return &target{addr: g.addr}, nil
	}
	for _, name := range parts[:len(parts)-1] {
		t, err := g.child(name, visited)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", abs, err)
		}
		if t.dataset {
			return nil, fmt.Errorf("%s: %q %w", abs, name, ErrNotGroup)
		}
		if g, err = f.openGroupAt(t.addr, JoinPath(g.path, name)); err != nil {
			return nil, err
		}
	}
	t, err := g.child(parts[len(parts)-1], visited)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	return t, nil
}
