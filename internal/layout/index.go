package layout

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/btree"
)

// readFixedArray reads chunk entries from a fixed array index (FAHD/FADB).
func (c *Chunked) readFixedArray(addr uint64) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(addr))
	if err := expectSignature(nr, "FAHD"); err != nil {
		return nil, err
	}

	// version, client ID, entry size, page bits
	hdr, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if hdr[0] != 0 {
		return nil, fmt.Errorf("unsupported fixed array version: %d", hdr[0])
	}
	entrySize := int(hdr[2])
	pageBits := uint(hdr[3])

	numEntries, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	dataBlockAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if c.reader.IsUndefinedOffset(dataBlockAddr) {
		return nil, nil
	}

	db := c.reader.At(int64(dataBlockAddr))
	if err := expectSignature(db, "FADB"); err != nil {
		return nil, err
	}
	// version, client ID, header address
	if _, err := db.ReadBytes(2); err != nil {
		return nil, err
	}
	if _, err := db.ReadOffset(); err != nil {
		return nil, err
	}

	pageSize := uint64(1) << pageBits
	if numEntries <= pageSize {
		return c.readArrayEntries(db, 0, numEntries, entrySize)
	}

	// Paged data block: a page-init bitmap and its checksum precede the
	// pages, each page followed by its own checksum.
	numPages := ceilDiv(numEntries, pageSize)
	bitmap, err := db.ReadBytes(int(ceilDiv(numPages, 8)))
	if err != nil {
		return nil, fmt.Errorf("reading page bitmap: %w", err)
	}
	db.Skip(4)

	var entries []btree.ChunkEntry
	for p := uint64(0); p < numPages; p++ {
		n := min(pageSize, numEntries-p*pageSize)
		pageBytes := int64(n)*int64(entrySize) + 4
		if bitmap[p/8]&(0x80>>(p%8)) == 0 {
			db.Skip(pageBytes)
			continue
		}
		page, err := c.readArrayEntries(db, p*pageSize, n, entrySize)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p, err)
		}
		entries = append(entries, page...)
		db.Skip(4)
	}
	return entries, nil
}

// readExtensibleArray reads chunk entries from an extensible array index
// (EAHD/EAIB). Only elements held directly in the index block are supported.
func (c *Chunked) readExtensibleArray(addr uint64) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(addr))
	if err := expectSignature(nr, "EAHD"); err != nil {
		return nil, err
	}

	// version, client ID, element size, max elements bits, index block
	// elements, data block min elements, secondary block min pointers,
	// data block page max elements bits
	hdr, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if hdr[0] != 0 {
		return nil, fmt.Errorf("unsupported extensible array version: %d", hdr[0])
	}
	elemSize := int(hdr[2])
	idxBlockElems := uint64(hdr[4])

	// Statistics: secondary blocks, their size, data blocks, their size.
	for i := 0; i < 4; i++ {
		if _, err := nr.ReadLength(); err != nil {
			return nil, err
		}
	}
	maxIndexSet, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := nr.ReadLength(); err != nil {
		return nil, err
	}
	idxBlockAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if c.reader.IsUndefinedOffset(idxBlockAddr) || maxIndexSet == 0 {
		return nil, nil
	}
	if maxIndexSet > idxBlockElems {
		return nil, fmt.Errorf("extensible array holds %d elements, only %d in the index block are supported",
			maxIndexSet, idxBlockElems)
	}

	ib := c.reader.At(int64(idxBlockAddr))
	if err := expectSignature(ib, "EAIB"); err != nil {
		return nil, err
	}
	if _, err := ib.ReadBytes(2); err != nil {
		return nil, err
	}
	if _, err := ib.ReadOffset(); err != nil {
		return nil, err
	}
	return c.readArrayEntries(ib, 0, maxIndexSet, elemSize)
}

// readArrayEntries decodes n array elements starting at linear chunk index
// first. Elements are a bare address for unfiltered chunks, or address,
// stored size and filter mask for filtered ones.
func (c *Chunked) readArrayEntries(nr *binary.Reader, first, n uint64, entrySize int) ([]btree.ChunkEntry, error) {
	offsetSize := c.reader.OffsetSize()
	sizeBytes := entrySize - offsetSize - 4
	filtered := entrySize > offsetSize

	entries := make([]btree.ChunkEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		chunkAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading chunk address: %w", err)
		}

		var entry btree.ChunkEntry
		if filtered {
			if sizeBytes <= 0 {
				return nil, fmt.Errorf("invalid filtered entry size %d", entrySize)
			}
			size, err := nr.ReadUintN(sizeBytes)
			if err != nil {
				return nil, fmt.Errorf("reading chunk size: %w", err)
			}
			mask, err := nr.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("reading filter mask: %w", err)
			}
			entry.Size = uint32(size)
			entry.FilterMask = mask
		}

		if chunkAddr == 0 || c.reader.IsUndefinedOffset(chunkAddr) {
			continue
		}
		entry.Address = chunkAddr
		entry.Offset = c.chunkOffset(first + i)
		entries = append(entries, entry)
	}
	return entries, nil
}

func expectSignature(nr *binary.Reader, want string) error {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("reading %s signature: %w", want, err)
	}
	if string(sig) != want {
		return fmt.Errorf("invalid signature: got %q, expected %q", sig, want)
	}
	return nil
}
