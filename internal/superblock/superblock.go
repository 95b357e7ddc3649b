package superblock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte("\x89HDF\r\n\x1a\n")

var signatureOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the file-wide parameters needed to read everything else.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	// Flags are the file consistency flags of a version 2 or 3 superblock.
	Flags uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Version 0 and 1 files may cache the root group's symbol table in the
	// superblock's root entry.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// Offset is where the signature was found.
	Offset int64
}

// Read finds the superblock at one of the standard signature offsets and
// decodes it.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, len(Signature)+1)
	for _, off := range signatureOffsets {
		if _, err := r.ReadAt(head, off); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if string(head[:8]) != string(Signature) {
			continue
		}

		var sb *Superblock
		var err error
		switch v := head[8]; v {
		case 0, 1:
			sb, err = readV01(r, off, v)
		case 2, 3:
			sb, err = readV23(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		if err != nil {
			return nil, err
		}
		sb.Offset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig returns the integer encoding used throughout the file.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func (sb *Superblock) checkSizes() error {
	for _, s := range []uint8{sb.OffsetSize, sb.LengthSize} {
		if s != 2 && s != 4 && s != 8 {
			return fmt.Errorf("%w: field size %d", ErrInvalidSuperblock, s)
		}
	}
	return nil
}

// readV01 decodes the fixed fields of a version 0 or 1 superblock followed
// by the root group symbol table entry.
func readV01(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	fixed := make([]byte, 16)
	if _, err := r.ReadAt(fixed, off+8); err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: fixed[5], LengthSize: fixed[6]}
	if err := sb.checkSizes(); err != nil {
		return nil, err
	}

	br := binpkg.NewReader(r, sb.ReaderConfig()).At(off + 24)
	if version == 1 {
		// indexed storage K and reserved
		br.Skip(4)
	}
	// base, free-space info, end of file, driver info, root entry name
	// offset, root object header
	addrs := make([]uint64, 6)
	for i := range addrs {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
		}
		addrs[i] = v
	}
	sb.BaseAddress, sb.EOFAddress, sb.RootGroupAddress = addrs[0], addrs[2], addrs[5]

	cache, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	br.Skip(4)
	if cache == 1 {
		if sb.RootGroupBTreeAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootGroupLocalHeapAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// readV23 decodes a checksummed version 2 or 3 superblock.
func readV23(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	sb := &Superblock{Version: head[8], OffsetSize: head[9], LengthSize: head[10], Flags: head[11]}
	if err := sb.checkSizes(); err != nil {
		return nil, err
	}

	size := sb.Size()
	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, off); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	body := raw[:size-4]
	if binary.LittleEndian.Uint32(raw[size-4:]) != binpkg.Lookup3Checksum(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}

	o := int(sb.OffsetSize)
	addr := func(i int) uint64 {
		var v uint64
		for b := o - 1; b >= 0; b-- {
			v = v<<8 | uint64(body[12+i*o+b])
		}
		return v
	}
	sb.BaseAddress = addr(0)
	sb.ExtensionAddress = addr(1)
	sb.EOFAddress = addr(2)
	sb.RootGroupAddress = addr(3)
	return sb, nil
}
