package hdf5

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/robert-malhotra/turbslice/internal/btree"
	"github.com/robert-malhotra/turbslice/internal/heap"
	"github.com/robert-malhotra/turbslice/internal/message"
	"github.com/robert-malhotra/turbslice/internal/object"
)

// Group is an HDF5 group. Both link-message groups and old-style
// symbol-table groups are readable; only the former can be written.
type Group struct {
	file   *File
	path   string
	addr   uint64
	header *object.Header

	// parent and links are kept for rewriting the header on writes
	parent *Group
	links  []*message.Link
}

// target is where a link points.
type target struct {
	addr    uint64
	dataset bool
}

// Name returns the last path component, "/" for the root.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

func (g *Group) Path() string { return g.path }

// OpenGroup opens the group at a path relative to g.
func (g *Group) OpenGroup(rel string) (*Group, error) {
	return openAs[*Group](g, rel, ErrNotGroup)
}

// OpenDataset opens the dataset at a path relative to g.
func (g *Group) OpenDataset(rel string) (*Dataset, error) {
	return openAs[*Dataset](g, rel, ErrNotDataset)
}

func openAs[T any](g *Group, rel string, wrong error) (T, error) {
	var zero T
	obj, err := g.Object(rel)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%s: %w", JoinPath(g.path, rel), wrong)
	}
	return v, nil
}

// Object returns the *Group or *Dataset at a path relative to g.
func (g *Group) Object(rel string) (any, error) {
	parts := SplitPath(rel)
	cur := g
	visited := map[string]bool{}
	for i, name := range parts {
		t, err := cur.child(name, visited)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", JoinPath(cur.path, name), err)
		}
		p := JoinPath(cur.path, name)
		if t.dataset {
			if i < len(parts)-1 {
				return nil, fmt.Errorf("%s: %w", p, ErrNotGroup)
			}
			return g.file.openDatasetAt(t.addr, p)
		}
		next, err := g.file.openGroupAt(t.addr, p)
		if err != nil {
			return nil, err
		}
		next.parent = cur
		cur = next
	}
	return cur, nil
}

// Members lists the member names in storage order: creation order for
// link-message groups, name order for symbol-table groups and for dense
// groups without a creation order index.
func (g *Group) Members() ([]string, error) {
	links, err := g.allLinks()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, l := range links {
		names = append(names, l.Name)
	}
	if len(names) > 0 {
		return names, nil
	}
	entries, err := g.tableEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (g *Group) NumObjects() (int, error) {
	names, err := g.Members()
	return len(names), err
}

func (g *Group) linkMessages() []*message.Link {
	msgs := g.header.FindAll(message.TypeLink)
	links := make([]*message.Link, 0, len(msgs))
	for _, m := range msgs {
		links = append(links, m.(*message.Link))
	}
	return links
}

// allLinks returns the header links followed by any held in dense storage.
func (g *Group) allLinks() ([]*message.Link, error) {
	links := g.linkMessages()
	dense, err := g.denseLinks()
	if err != nil {
		return nil, err
	}
	return append(links, dense...), nil
}

// denseInfo returns the link info of a group whose links live in a
// fractal heap, nil for compact and symbol-table groups.
func (g *Group) denseInfo() *message.LinkInfo {
	m := g.header.Find(message.TypeLinkInfo)
	if m == nil {
		return nil
	}
	li := m.(*message.LinkInfo)
	if g.file.reader.IsUndefinedOffset(li.FractalHeapAddr) {
		return nil
	}
	return li
}

// denseLinks decodes the link messages a dense group keeps in its fractal
// heap, walking the creation order index when the group has one.
func (g *Group) denseLinks() ([]*message.Link, error) {
	li := g.denseInfo()
	if li == nil {
		return nil, nil
	}
	r := g.file.reader
	undefined := func(addr uint64) bool {
		return addr == message.UndefinedAddress || r.IsUndefinedOffset(addr)
	}
	fh, err := heap.ReadFractalHeap(r, li.FractalHeapAddr)
	if err != nil {
		return nil, g.denseErr(err)
	}
	index, byOrder := li.NameIndexBTreeAddr, false
	if !undefined(li.CreationOrderBTreeAddr) {
		index, byOrder = li.CreationOrderBTreeAddr, true
	}
	if undefined(index) {
		return nil, fmt.Errorf("group %s has dense links but no index: %w", g.path, ErrUnsupported)
	}
	ids, err := btree.ReadLinkIndex(r, index)
	if err != nil {
		return nil, g.denseErr(err)
	}
	links := make([]*message.Link, 0, len(ids))
	for _, id := range ids {
		obj, err := fh.Object(id)
		if err != nil {
			return nil, g.denseErr(err)
		}
		m, err := message.Parse(message.TypeLink, obj, r.Config())
		if err != nil {
			return nil, g.denseErr(err)
		}
		links = append(links, m.(*message.Link))
	}
	if !byOrder {
		slices.SortFunc(links, func(a, b *message.Link) int { return strings.Compare(a.Name, b.Name) })
	}
	return links, nil
}

func (g *Group) denseErr(err error) error {
	if errors.Is(err, heap.ErrUnsupported) {
		return fmt.Errorf("group %s dense links: %w: %w", g.path, ErrUnsupported, err)
	}
	return fmt.Errorf("group %s dense links: %w", g.path, err)
}

// child resolves one member name, following soft links.
func (g *Group) child(name string, visited map[string]bool) (*target, error) {
	links, err := g.allLinks()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Name != name {
			continue
		}
		switch {
		case l.IsHard():
			return g.hard(l.ObjectAddress)
		case l.IsSoft():
			return g.soft(l.SoftLinkValue, visited)
		case l.IsExternal():
			return nil, fmt.Errorf("external link to %s:%s: %w", l.ExternalFile, l.ExternalPath, ErrUnsupported)
		default:
			return nil, fmt.Errorf("link type %d: %w", l.LinkType, ErrUnsupported)
		}
	}

	entries, err := g.tableEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		if e.SoftLink != "" {
			return g.soft(e.SoftLink, visited)
		}
		return g.hard(e.Address)
	}
	return nil, ErrNotFound
}

func (g *Group) hard(addr uint64) (*target, error) {
	h, err := object.Read(g.file.reader, addr)
	if err != nil {
		return nil, err
	}
	// only datasets carry a dataspace
	return &target{addr: addr, dataset: h.Find(message.TypeDataspace) != nil}, nil
}

func (g *Group) soft(dest string, visited map[string]bool) (*target, error) {
	if len(visited) >= MaxLinkDepth {
		return nil, ErrLinkDepth
	}
	if visited[dest] {
		return nil, fmt.Errorf("soft link cycle through %s: %w", dest, ErrLinkDepth)
	}
	visited[dest] = true
	return g.file.locate(dest, visited)
}

// symbolTable returns the group's v1 symbol table. An old-style root
// group keeps it in the superblock scratch pad instead.
func (g *Group) symbolTable() *message.SymbolTable {
	if m := g.header.Find(message.TypeSymbolTable); m != nil {
		return m.(*message.SymbolTable)
	}
	if sb := g.file.sb; g.path == "/" && sb.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

// tableEntries returns the symbol table entries, none for a group
// without a symbol table.
func (g *Group) tableEntries() ([]btree.GroupEntry, error) {
	st := g.symbolTable()
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocalHeap(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("group %s local heap: %w", g.path, err)
	}
	entries, err := btree.ReadGroupEntries(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("group %s B-tree: %w", g.path, err)
	}
	return entries, nil
}
