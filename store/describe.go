package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/robert-malhotra/turbslice/hdf5"
)

// keylistLimit is the key count above which Describe abbreviates listings.
const keylistLimit = 100

// Describe prints a summary of the store structure: the key count and keys
// of each level, following the first member down to a dataset, whose
// element type and shape end the summary.
func (s *Store) Describe(w io.Writer) error {
	var obj any = s.file.Root()
	for {
		switch o := obj.(type) {
		case *hdf5.Group:
			keys, err := o.Members()
			if err != nil {
				return fmt.Errorf("listing %s: %w", o.Path(), err)
			}
			fmt.Fprintf(w, "No of keys = %d\n", len(keys))
			fmt.Fprintf(w, "Keylist: %s\n", formatKeylist(keys))
			if len(keys) == 0 {
				return nil
			}
			next, err := o.Object(keys[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", hdf5.JoinPath(o.Path(), keys[0]), err)
			}
			if _, ok := next.(*hdf5.Group); ok {
				fmt.Fprintln(w)
			}
			obj = next
		case *hdf5.Dataset:
			fmt.Fprintf(w, "dtype: %s\n", o.TypeName())
			fmt.Fprintf(w, "shape: %s\n\n", FormatShape(o.Shape()))
			return nil
		default:
			return fmt.Errorf("unknown object %T", obj)
		}
	}
}

// Tree prints every group and dataset of the store, one per line, indented
// by depth. Datasets show their element type, shape and storage layout.
func (s *Store) Tree(w io.Writer) error {
	fmt.Fprintf(w, "%s (superblock v%d)\n", s.path, s.file.Version())
	return hdf5.Walk(s.file.Root(), func(p string, obj any, err error) error {
		depth := len(hdf5.SplitPath(p))
		indent := strings.Repeat("  ", depth)
		if err != nil {
			fmt.Fprintf(w, "%s%s  ERROR: %v\n", indent, p, err)
			return nil
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			n, err := o.NumObjects()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s%s/  (%d members)\n", indent, strings.TrimSuffix(p, "/"), n)
		case *hdf5.Dataset:
			fmt.Fprintf(w, "%s%s  %s %s %s\n", indent, p, o.TypeName(), FormatShape(o.Shape()), o.StorageLayout())
		}
		return nil
	})
}

func formatKeylist(keys []string) string {
	n := len(keys)
	if n > keylistLimit {
		return fmt.Sprintf("%s %s .... %s %s", keys[0], keys[1], keys[n-2], keys[n-1])
	}
	return "[" + strings.Join(keys, " ") + "]"
}

// FormatShape renders a shape as a tuple, e.g. (10, 10, 10), (5,) or ().
func FormatShape(shape []uint64) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
