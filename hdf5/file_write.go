package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/turbslice/internal/alloc"
	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
	"github.com/robert-malhotra/turbslice/internal/object"
	"github.com/robert-malhotra/turbslice/internal/superblock"
)

// dataAlign is the alignment of raw data blocks in created files.
const dataAlign = 8

// Create writes a new, empty HDF5 file at path, truncating any existing
// one. Objects added to it can be read back before Close.
func Create(path string, opts ...FileOption) (*File, error) {
	cfg, err := newFileConfig(opts)
	if err != nil {
		return nil, err
	}
	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	f, err := create(path, osFile, cfg)
	if err != nil {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}
	return f, nil
}

func create(path string, osFile *os.File, cfg *fileConfig) (*File, error) {
	bc := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: cfg.offsetSize,
		LengthSize: cfg.lengthSize,
	}
	sb := superblock.New()
	sb.OffsetSize = uint8(cfg.offsetSize)
	sb.LengthSize = uint8(cfg.lengthSize)

	f := &File{
		path:   path,
		osFile: osFile,
		sb:     sb,
		reader: binpkg.NewReader(osFile, bc),
		log:    cfg.log.With("file", path),
		writer: binpkg.NewWriter(osFile, bc),
		space:  alloc.New(uint64(sb.Size())),
	}
	rootAddr, err := f.writeHeader(object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("writing root group: %w", err)
	}
	sb.RootGroupAddress = rootAddr
	if err := f.writeSuperblock(); err != nil {
		return nil, err
	}
	if f.root, err = f.openGroupAt(rootAddr, "/"); err != nil {
		return nil, err
	}
	f.log.Debug("created", "offset_size", cfg.offsetSize, "length_size", cfg.lengthSize)
	return f, nil
}

// Flush rewrites the superblock with the current end of file and syncs
// the file. It does nothing for a file opened with Open.
func (f *File) Flush() error {
	if !f.IsWritable() {
		return nil
	}
	if err := f.writeSuperblock(); err != nil {
		return err
	}
	f.log.Debug("flushed", "eof", f.sb.EOFAddress, "blocks", f.space.Blocks())
	return f.osFile.Sync()
}

func (f *File) writeSuperblock() error {
	f.sb.EOFAddress = f.space.End()
	if _, err := f.sb.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// writeHeader stores msgs as a new object header and returns its address.
func (f *File) writeHeader(msgs []message.Message, minChunk int) (uint64, error) {
	buf, err := object.Encode(f.writer.Config(), msgs, minChunk)
	if err != nil {
		return 0, err
	}
	return f.writeBlock(buf, 1)
}

// writeBlock stores b at newly reserved space aligned to align.
func (f *File) writeBlock(b []byte, align uint64) (uint64, error) {
	addr := f.reserve(int64(len(b)), align)
	if err := f.writer.At(int64(addr)).WriteBytes(b); err != nil {
		return 0, err
	}
	return addr, nil
}

func (f *File) reserve(n int64, align uint64) uint64 {
	return f.space.Reserve(uint64(n), align)
}

func (f *File) allocate(n int64) uint64 { return f.reserve(n, dataAlign) }
