package message

import (
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/binary"
)

// Type is a header message type code.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValueOld             Type = 0x04
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeExternalDataFiles        Type = 0x07
	TypeDataLayout               Type = 0x08
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
	TypeObjectModTime            Type = 0x12
	TypeAttributeInfo            Type = 0x15
	TypeObjectRefCount           Type = 0x16
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Encoder is a message that can be written into an object header.
type Encoder interface {
	Message
	Encode(cfg binary.Config) ([]byte, error)
}

var decoders = map[Type]func(*decoder) (Message, error){
	TypeDataspace:      decodeDataspace,
	TypeDatatype:       decodeDatatypeMessage,
	TypeFillValue:      decodeFillValue,
	TypeLink:           decodeLink,
	TypeDataLayout:     decodeDataLayout,
	TypeFilterPipeline: decodeFilterPipeline,
	TypeSymbolTable:    decodeSymbolTable,
	TypeLinkInfo:       decodeLinkInfo,
	TypeObjectHeaderContinuation: func(d *decoder) (Message, error) {
		return &Continuation{Offset: d.offset(), Length: d.length()}, nil
	},
}

// Parse decodes the body of a message of type typ. Types without a decoder
// come back as *Unknown.
func Parse(typ Type, data []byte, cfg binary.Config) (Message, error) {
	decode, ok := decoders[typ]
	if !ok {
		return &Unknown{typ: typ, data: data}, nil
	}
	d := &decoder{cfg: cfg, b: data}
	msg, err := decode(d)
	if err == nil {
		err = d.err
	}
	if err != nil {
		return nil, fmt.Errorf("message type %#x: %w", uint16(typ), err)
	}
	return msg, nil
}

// Unknown is a message this package does not decode.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// ParseContinuation decodes a continuation message body.
func ParseContinuation(data []byte, cfg binary.Config) (*Continuation, error) {
	msg, err := Parse(TypeObjectHeaderContinuation, data, cfg)
	if err != nil {
		return nil, err
	}
	return msg.(*Continuation), nil
}
