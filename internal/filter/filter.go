// Package filter reverses the filter pipeline HDF5 applies to each chunk.
//
// DEFLATE, shuffle and Fletcher-32 are built in to the format. The zstd
// (32015) and LZ4 (32004) plugin filters registered with The HDF Group
// are decoded as well. SZIP, N-bit and scale-offset are recognized only to
// report them; an unknown filter marked optional is skipped.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/turbslice/internal/message"
)

// Registered plugin filters.
const (
	IDLZ4  uint16 = 32004
	IDZstd uint16 = 32015
)

// ErrUnsupported is returned for a required filter that cannot be decoded.
var ErrUnsupported = errors.New("unsupported filter")

// Decoder undoes one filter stage.
type Decoder interface {
	Decode(in []byte) ([]byte, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(in []byte) ([]byte, error)

func (f DecoderFunc) Decode(in []byte) ([]byte, error) { return f(in) }

// factory builds a decoder from a filter's client data and the dataset's
// element size.
type factory func(clientData []uint32, elemSize int) Decoder

func stateless(f DecoderFunc) factory {
	return func([]uint32, int) Decoder { return f }
}

var registry = map[uint16]factory{
	message.FilterDeflate:    stateless(inflate),
	message.FilterShuffle:    newShuffle,
	message.FilterFletcher32: stateless(verifyFletcher32),
	IDZstd:                   stateless(unzstd),
	IDLZ4:                    stateless(unlz4),
}

var knownNames = map[uint16]string{
	message.FilterSZIP:        "SZIP",
	message.FilterNBit:        "N-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New returns the decoder for one pipeline entry, or nil for an optional
// filter that is not available.
func New(info message.FilterInfo, elemSize int) (Decoder, error) {
	if build, ok := registry[info.ID]; ok {
		return build(info.ClientData, elemSize), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	name := knownNames[info.ID]
	if name == "" {
		name = info.Name
	}
	if name == "" {
		return nil, fmt.Errorf("%w %d", ErrUnsupported, info.ID)
	}
	return nil, fmt.Errorf("%w %d (%s)", ErrUnsupported, info.ID, name)
}
