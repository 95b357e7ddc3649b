package store

import (
	"cmp"
	"slices"
	"strconv"
)

// SortTimeKeys returns keys ordered for a time axis: keys that parse as
// numbers first, in numeric order, then the rest lexicographically.
// Storage order is lexicographic for old-style groups, which puts "10"
// before "9". The input is not modified.
func SortTimeKeys(keys []string) []string {
	type key struct {
		s       string
		v       float64
		numeric bool
	}
	ks := make([]key, len(keys))
	for i, s := range keys {
		v, err := strconv.ParseFloat(s, 64)
		ks[i] = key{s: s, v: v, numeric: err == nil}
	}

	slices.SortStableFunc(ks, func(a, b key) int {
		switch {
		case a.numeric && b.numeric:
			if c := cmp.Compare(a.v, b.v); c != 0 {
				return c
			}
			return cmp.Compare(a.s, b.s)
		case a.numeric:
			return -1
		case b.numeric:
			return 1
		default:
			return cmp.Compare(a.s, b.s)
		}
	})

	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.s
	}
	return out
}
