package alloc

import (
	"sync"
	"testing"
)

func TestReserveSequential(t *testing.T) {
	a := New(48)
	if addr := a.Reserve(100, 1); addr != 48 {
		t.Errorf("first block at %d, want 48", addr)
	}
	if addr := a.Reserve(0, 0); addr != 148 {
		t.Errorf("empty block at %d, want 148", addr)
	}
	if addr := a.Reserve(16, 1); addr != 148 {
		t.Errorf("third block at %d, want 148", addr)
	}
	if a.End() != 164 || a.Blocks() != 3 {
		t.Errorf("End() = %d, Blocks() = %d; want 164, 3", a.End(), a.Blocks())
	}
}

func TestReserveAligned(t *testing.T) {
	a := New(50)
	tests := []struct{ n, want uint64 }{
		{3, 56},
		{8, 64},
		{1, 72},
	}
	for _, tt := range tests {
		if got := a.Reserve(tt.n, 8); got != tt.want {
			t.Errorf("Reserve(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
	if a.End() != 73 {
		t.Errorf("End() = %d, want 73", a.End())
	}
}

func TestReserveConcurrent(t *testing.T) {
	a := New(0)
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[uint64]bool)
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := a.Reserve(6, 4)
			mu.Lock()
			defer mu.Unlock()
			if addr%4 != 0 || seen[addr] {
				t.Errorf("bad block at %d", addr)
			}
			seen[addr] = true
		}()
	}
	wg.Wait()
	// 63 blocks of 6 padded to 8, then the last one unpadded
	if a.End() != 63*8+6 {
		t.Errorf("End() = %d, want %d", a.End(), 63*8+6)
	}
}
