package store

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrOpen          = errors.New("cannot open store")
	ErrIndex         = errors.New("index out of range")
	ErrShapeMismatch = errors.New("shape mismatch")
)

// NotFoundError reports a store file, variable or time key that does not
// resolve.
type NotFoundError struct {
	Path string // file path or in-store path
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: not found: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: not found", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Err }

// OpenError reports a store that exists but cannot be opened or parsed.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening store %s: %v", e.Path, e.Err)
}

func (e *OpenError) Is(target error) bool { return target == ErrOpen }
func (e *OpenError) Unwrap() error        { return e.Err }

// IndexError reports a positional index outside an ordered listing.
type IndexError struct {
	What  string // "variable" or "time"
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.What, e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// ShapeMismatchError reports a requested box that does not fit a time
// dataset. Lo and Hi are the inclusive corners of the box.
type ShapeMismatchError struct {
	Path   string
	Shape  []uint64
	Lo, Hi [3]int64
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: box %v..%v does not fit shape %v: %s", e.Path, e.Lo, e.Hi, e.Shape, e.Reason)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }
