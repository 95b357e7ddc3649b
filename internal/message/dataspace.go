package message

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// DataspaceType distinguishes scalar, simple and null dataspaces.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

const dataspaceHasMax = 0x01

// Dataspace is the shape of a dataset (message 0x0001).
type Dataspace struct {
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when the extent is fixed
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dimensions) }

// NumElements returns the number of elements the dataspace holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

func (m *Dataspace) IsNull() bool { return m.SpaceType == DataspaceNull }

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace { return &Dataspace{SpaceType: DataspaceScalar} }

func NewNullDataspace() *Dataspace { return &Dataspace{SpaceType: DataspaceNull} }

// Version 1 has no type byte and four reserved bytes; its type follows
// from the rank. Version 2 stores the type explicitly.
func decodeDataspace(d *decoder) (Message, error) {
	version, rank, flags := d.u8(), int(d.u8()), d.u8()
	m := &Dataspace{}
	switch version {
	case 1:
		d.skip(5)
		m.SpaceType = DataspaceSimple
		if rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(d.u8())
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", version)
	}
	if m.SpaceType != DataspaceSimple {
		return m, nil
	}
	m.Dimensions = make([]uint64, rank)
	for i := range m.Dimensions {
		m.Dimensions[i] = d.length()
	}
	if flags&dataspaceHasMax != 0 {
		m.MaxDims = make([]uint64, rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = d.length()
		}
	}
	return m, nil
}

// Encode writes a version 2 dataspace.
func (m *Dataspace) Encode(cfg binary.Config) ([]byte, error) {
	if len(m.MaxDims) > 0 && len(m.MaxDims) != len(m.Dimensions) {
		return nil, fmt.Errorf("dataspace has %d max dimensions for rank %d", len(m.MaxDims), len(m.Dimensions))
	}
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags |= dataspaceHasMax
	}
	e := encoder{cfg: cfg}
	e.u8(2, uint8(len(m.Dimensions)), flags, uint8(m.SpaceType))
	for _, v := range m.Dimensions {
		e.length(v)
	}
	for _, v := range m.MaxDims {
		e.length(v)
	}
	return e.b, nil
}
