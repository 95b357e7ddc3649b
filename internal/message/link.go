package message

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// LinkType is the kind of target a link names.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link message flag bits. The low two bits size the name length field.
const (
	linkHasOrder   = 0x04
	linkHasType    = 0x08
	linkHasCharset = 0x10
)

// Link names a member of a new-style group (message 0x0006).
type Link struct {
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       CharacterSet

	ObjectAddress uint64 // hard
	SoftLinkValue string // soft
	ExternalFile  string // external
	ExternalPath  string // external
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

// NewHardLink links name to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

// NewSoftLink links name to a path resolved at lookup time.
func NewSoftLink(name, target string) *Link {
	return &Link{LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

func decodeLink(d *decoder) (Message, error) {
	if v := d.u8(); v != 1 {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := d.u8()
	m := &Link{}
	if flags&linkHasType != 0 {
		m.LinkType = LinkType(d.u8())
	}
	if flags&linkHasOrder != 0 {
		m.CreationOrder = d.u64()
	}
	if flags&linkHasCharset != 0 {
		m.Charset = CharacterSet(d.u8())
	}
	m.Name = string(d.take(int(d.uint(1 << (flags & 0x03)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = d.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(d.take(int(d.u16())))
	case LinkTypeExternal:
		info := d.take(int(d.u16()))
		if len(info) < 1 {
			return nil, fmt.Errorf("external link %q: %w", m.Name, errTruncated)
		}
		// a version/flags byte, then NUL-terminated file and object paths
		file, path, _ := strings.Cut(string(info[1:]), "\x00")
		m.ExternalFile = file
		m.ExternalPath = strings.TrimRight(path, "\x00")
	}
	return m, nil
}

// Encode writes a version 1 link. The link type is only stored for links
// that are not hard.
func (m *Link) Encode(cfg binary.Config) ([]byte, error) {
	code := widthCode(uint64(len(m.Name)))
	flags := code
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	e := encoder{cfg: cfg}
	e.u8(1, flags)
	if m.LinkType != LinkTypeHard {
		e.u8(uint8(m.LinkType))
	}
	e.uint(uint64(len(m.Name)), 1<<code)
	e.bytes([]byte(m.Name))
	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		info := "\x00" + m.ExternalFile + "\x00" + m.ExternalPath + "\x00"
		e.u16(uint16(len(info)))
		e.bytes([]byte(info))
	default:
		return nil, fmt.Errorf("cannot write link type %d", m.LinkType)
	}
	return e.b, nil
}
