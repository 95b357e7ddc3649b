package message

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// UndefinedAddress marks an address field that points nowhere.
const UndefinedAddress = ^uint64(0)

// LinkInfo is the link bookkeeping of a new-style group (message 0x0002).
// A group whose links all live in its header has no fractal heap or name
// index, so both addresses are undefined.
type LinkInfo struct {
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

const (
	linkInfoTracked = 0x01
	linkInfoIndexed = 0x02
)

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// NewLinkInfo describes a group with compact link storage.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexBTreeAddr: UndefinedAddress}
}

func decodeLinkInfo(d *decoder) (Message, error) {
	if v := d.u8(); v != 0 {
		return nil, fmt.Errorf("unsupported link info version %d", v)
	}
	m := &LinkInfo{Flags: d.u8(), CreationOrderBTreeAddr: UndefinedAddress}
	if m.Flags&linkInfoTracked != 0 {
		m.MaxCreationIndex = d.u64()
	}
	m.FractalHeapAddr = d.offset()
	m.NameIndexBTreeAddr = d.offset()
	if m.Flags&linkInfoIndexed != 0 {
		m.CreationOrderBTreeAddr = d.offset()
	}
	return m, nil
}

func (m *LinkInfo) Encode(cfg binary.Config) ([]byte, error) {
	e := encoder{cfg: cfg}
	e.u8(0, m.Flags)
	if m.Flags&linkInfoTracked != 0 {
		e.uint(m.MaxCreationIndex, 8)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&linkInfoIndexed != 0 {
		e.offset(m.CreationOrderBTreeAddr)
	}
	return e.b, nil
}

// GroupInfo holds the storage thresholds of a new-style group (message
// 0x000A). Zero flags leave the library defaults in effect.
type GroupInfo struct {
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

const (
	groupInfoPhase    = 0x01
	groupInfoEstimate = 0x02
)

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }

func (m *GroupInfo) Encode(cfg binary.Config) ([]byte, error) {
	e := encoder{cfg: cfg}
	e.u8(0, m.Flags)
	if m.Flags&groupInfoPhase != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&groupInfoEstimate != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return e.b, nil
}

// SymbolTable locates the B-tree and local heap of an old-style group
// (message 0x0011).
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func decodeSymbolTable(d *decoder) (Message, error) {
	return &SymbolTable{BTreeAddress: d.offset(), LocalHeapAddress: d.offset()}, nil
}
