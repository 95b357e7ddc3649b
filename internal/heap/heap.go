// Package heap reads the local heaps that hold member names of
// symbol-table groups and the fractal heaps that hold link messages of
// groups with dense link storage.
package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// LocalHeap is the data segment of a "HEAP" structure.
type LocalHeap struct {
	data []byte
}

// ReadLocalHeap loads the heap whose header is at addr.
func ReadLocalHeap(r *binary.Reader, addr uint64) (*LocalHeap, error) {
	hr := r.At(int64(addr))
	hdr, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	if string(hdr[:4]) != "HEAP" {
		return nil, fmt.Errorf("invalid local heap signature %q", hdr[:4])
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version %d", hdr[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	// free list head
	hr.Skip(int64(hr.LengthSize()))
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return &LocalHeap{data: data}, nil
}

// String returns the null-terminated string at off, or "" when off is
// outside the heap.
func (h *LocalHeap) String(off uint64) string {
	if off >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
