package hdf5

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/message"
	"github.com/robert-malhotra/turbslice/internal/object"
)

var errEmptyName = errors.New("empty member name")

// CreateGroup adds an empty subgroup named name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkWritable(name); err != nil {
		return nil, err
	}
	addr, err := g.file.writeHeader(object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", name, err)
	}
	if err := g.link(name, addr); err != nil {
		return nil, err
	}
	sub, err := g.file.openGroupAt(addr, JoinPath(g.path, name))
	if err != nil {
		return nil, err
	}
	sub.parent = g
	return sub, nil
}

func (g *Group) checkWritable(name string) error {
	switch {
	case !g.file.IsWritable():
		return ErrReadOnly
	case g.file.closed:
		return ErrClosed
	case name == "":
		return errEmptyName
	}
	return nil
}

// link adds a hard link to addr and rewrites the group header.
func (g *Group) link(name string, addr uint64) error {
	if g.links == nil {
		if g.symbolTable() != nil {
			return fmt.Errorf("writing to symbol table group %s: %w", g.path, ErrUnsupported)
		}
		if g.denseInfo() != nil {
			return fmt.Errorf("writing to dense group %s: %w", g.path, ErrUnsupported)
		}
		g.links = g.linkMessages()
	}
	for _, l := range g.links {
		if l.Name == name {
			return fmt.Errorf("%s already exists", JoinPath(g.path, name))
		}
	}
	g.links = append(g.links, message.NewHardLink(name, addr))
	if err := g.relocate(); err != nil {
		return fmt.Errorf("linking %s: %w", JoinPath(g.path, name), err)
	}
	return nil
}

// relocate writes the group header at a new address and points the parent
// link (or the superblock, for the root) at it. The change propagates up
// to the root.
func (g *Group) relocate() error {
	addr, err := g.file.writeHeader(object.GroupMessages(g.links), object.MinGroupChunkSize)
	if err != nil {
		return err
	}
	if g.header, err = object.Read(g.file.reader, addr); err != nil {
		return fmt.Errorf("reading back group header: %w", err)
	}
	g.addr = addr

	if g.parent == nil {
		if g.path != "/" {
			return fmt.Errorf("group %s was opened without its parent", g.path)
		}
		g.file.sb.RootGroupAddress = addr
		g.file.root = g
		return nil
	}
	if g.parent.links == nil {
		g.parent.links = g.parent.linkMessages()
	}
	for _, l := range g.parent.links {
		if l.Name == g.Name() {
			l.ObjectAddress = addr
			return g.parent.relocate()
		}
	}
	return fmt.Errorf("%s: %w in parent", g.path, ErrNotFound)
}
