package message

import (
	"fmt"
	"strings"
)

// Filter identifiers registered with HDF5.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

const filterOptional = 0x01

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a reader may skip the filter when it is not
// available.
func (f *FilterInfo) IsOptional() bool { return f.Flags&filterOptional != 0 }

// FilterPipeline lists the filters applied to each chunk, in the order
// they were applied on write (message 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Version 1 pads names to 8 bytes and client data to an even count.
// Version 2 drops the padding and the name length of predefined filters.
func decodeFilterPipeline(d *decoder) (Message, error) {
	m := &FilterPipeline{Version: d.u8()}
	n := int(d.u8())
	switch m.Version {
	case 1:
		d.skip(6)
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
	}
	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = d.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Flags = d.u16()
		f.ClientData = make([]uint32, d.u16())
		f.Name, _, _ = strings.Cut(string(d.take(nameLen)), "\x00")
		for j := range f.ClientData {
			f.ClientData[j] = d.u32()
		}
		if m.Version == 1 && len(f.ClientData)%2 == 1 {
			d.skip(4)
		}
		if d.err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, d.err)
		}
	}
	return m, nil
}
