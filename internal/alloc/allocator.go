// Package alloc reserves space in an HDF5 file being written.
//
// Space only grows at the end of the file. A rewritten object header gets
// a new block and its old bytes stay behind unreferenced.
package alloc

import "sync"

// Allocator hands out blocks at the end of a file.
type Allocator struct {
	mu     sync.Mutex
	end    uint64
	blocks int
}

// New returns an Allocator whose first block starts at end.
func New(end uint64) *Allocator {
	return &Allocator{end: end}
}

// Reserve returns the address of a new block of n bytes whose start is a
// multiple of align. Padding bytes before the block are never written.
// An align below 2 means no rounding.
func (a *Allocator) Reserve(n, align uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.end
	if align > 1 {
		addr = (addr + align - 1) / align * align
	}
	a.end = addr + n
	a.blocks++
	return addr
}

// End is the end-of-file address: one past the last reserved byte.
func (a *Allocator) End() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.end
}

// Blocks returns the number of reservations made.
func (a *Allocator) Blocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks
}
