package hdf5

import (
	"path"
	"strings"
)

// SplitPath splits a path into its components.
// Leading and trailing slashes are ignored and empty components removed.
//
// Examples:
//   - "/" -> []string{}
//   - "/foo" -> []string{"foo"}
//   - "velocity//0/" -> []string{"velocity", "0"}
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CleanPath normalizes a path so it starts with "/" and has no trailing slash.
func CleanPath(p string) string {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// JoinPath joins a group path and a child name.
func JoinPath(parent, name string) string {
	return path.Join(CleanPath(parent), name)
}
