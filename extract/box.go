package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Box is a 3-D bounding box given by two corner points. Both corners are
// inclusive, and each axis may list its bounds in either order.
type Box struct {
	X1, X2 [3]int64
}

// Normalize orders each axis independently so that X1[i] <= X2[i].
func (b Box) Normalize() Box {
	for i := range 3 {
		if b.X1[i] > b.X2[i] {
			b.X1[i], b.X2[i] = b.X2[i], b.X1[i]
		}
	}
	return b
}

// Shape returns the number of elements the box spans on each axis,
// X2[i]-X1[i]+1 after normalization.
func (b Box) Shape() [3]uint64 {
	n := b.Normalize()
	var s [3]uint64
	for i := range 3 {
		s[i] = uint64(n.X2[i]-n.X1[i]) + 1
	}
	return s
}

// Len returns the number of elements inside the box.
func (b Box) Len() uint64 {
	s := b.Shape()
	return s[0] * s[1] * s[2]
}

// Contains reports whether the box lies inside an array of the given shape.
func (b Box) Contains(shape []uint64) bool {
	return b.check(shape) == ""
}

// check explains why the box does not fit shape, or returns "".
func (b Box) check(shape []uint64) string {
	if len(shape) != 3 {
		return fmt.Sprintf("dataset has rank %d, want 3", len(shape))
	}
	if reason := b.checkOrigin(); reason != "" {
		return reason
	}
	n := b.Normalize()
	for i := range 3 {
		if uint64(n.X2[i]) >= shape[i] {
			return fmt.Sprintf("axis %d ends at %d, extent is %d", i, n.X2[i], shape[i])
		}
	}
	return ""
}

// checkOrigin rejects boxes reaching below index zero.
func (b Box) checkOrigin() string {
	n := b.Normalize()
	for i := range 3 {
		if n.X1[i] < 0 {
			return fmt.Sprintf("axis %d starts at negative index %d", i, n.X1[i])
		}
	}
	return ""
}

// start and count give the hyperslab selection of a normalized box.
func (b Box) selection() (start, count []uint64) {
	n := b.Normalize()
	s := n.Shape()
	return []uint64{uint64(n.X1[0]), uint64(n.X1[1]), uint64(n.X1[2])}, s[:]
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d]..[%d,%d,%d]", b.X1[0], b.X1[1], b.X1[2], b.X2[0], b.X2[1], b.X2[2])
}

// ParseCorner parses a corner point written as "i,j,k". Surrounding
// brackets and spaces are allowed.
func ParseCorner(s string) ([3]int64, error) {
	var p [3]int64
	trimmed := strings.Trim(strings.TrimSpace(s), "[]()")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("corner %q: want 3 comma separated integers", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return p, fmt.Errorf("corner %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}
