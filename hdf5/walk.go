package hdf5

import "errors"

// WalkFunc is called by Walk for every object. obj is a *Group or a
// *Dataset, or nil when opening it failed with err.
type WalkFunc func(path string, obj any, err error) error

// SkipGroup, returned by a WalkFunc for a group, skips that group's
// members. Any other error ends the walk.
var SkipGroup = errors.New("skip this group")

// Walk visits g and then everything below it, depth first in storage
// order.
func Walk(g *Group, fn WalkFunc) error {
	if err := walk(g, fn); err != nil && !errors.Is(err, SkipGroup) {
		return err
	}
	return nil
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.path, g, nil); err != nil {
		return err
	}
	names, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range names {
		obj, err := g.Object(name)
		switch o := obj.(type) {
		case *Group:
			err = walk(o, fn)
			if errors.Is(err, SkipGroup) {
				err = nil
			}
		case *Dataset:
			err = fn(o.path, o, nil)
		default:
			err = fn(JoinPath(g.path, name), nil, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
