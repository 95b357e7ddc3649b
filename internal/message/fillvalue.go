package message

import "fmt"

// FillValue is the value unwritten elements read as (message 0x0005).
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

const (
	fillUndefined = 0x10
	fillHasValue  = 0x20
)

func decodeFillValue(d *decoder) (Message, error) {
	m := &FillValue{Version: d.u8()}
	switch m.Version {
	case 1, 2:
		m.SpaceAllocTime = d.u8()
		m.FillWriteTime = d.u8()
		m.IsDefined = d.u8() != 0
		// version 2 omits the size when no value is defined
		if m.Version == 1 || m.IsDefined {
			m.Value = d.bytes(int(d.u32()))
		}
	case 3:
		flags := d.u8()
		m.SpaceAllocTime = flags & 0x03
		m.FillWriteTime = flags >> 2 & 0x03
		m.IsDefined = flags&fillUndefined == 0
		if flags&fillHasValue != 0 {
			m.Value = d.bytes(int(d.u32()))
		}
	default:
		return nil, fmt.Errorf("unsupported fill value version %d", m.Version)
	}
	return m, nil
}
