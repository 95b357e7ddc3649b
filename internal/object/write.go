package object

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// MinGroupChunkSize is the first-chunk size h5py gives new groups, which
// leaves room for a few links before a continuation is needed.
const MinGroupChunkSize = 120

// GroupMessages are the messages of a new-style group holding links.
func GroupMessages(links []*message.Link) []message.Message {
	msgs := []message.Message{message.NewLinkInfo(), message.NewGroupInfo()}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// Encode serializes msgs as a single-chunk version 2 object header. The
// chunk is padded with a NIL message up to minChunk bytes.
func Encode(cfg binpkg.Config, msgs []message.Message, minChunk int) ([]byte, error) {
	var body []byte
	for _, m := range msgs {
		enc, ok := m.(message.Encoder)
		if !ok {
			return nil, fmt.Errorf("message type %d cannot be written", m.Type())
		}
		data, err := enc.Encode(cfg)
		if err != nil {
			return nil, fmt.Errorf("message type %d: %w", m.Type(), err)
		}
		if len(data) > 0xffff {
			return nil, fmt.Errorf("message type %d is %d bytes, the limit is 65535", m.Type(), len(data))
		}
		body = append(body, byte(m.Type()))
		body = binary.LittleEndian.AppendUint16(body, uint16(len(data)))
		body = append(body, 0)
		body = append(body, data...)
	}
	if pad := minChunk - len(body); pad > 0 {
		pad = max(pad, 4)
		body = append(body, byte(message.TypeNIL))
		body = binary.LittleEndian.AppendUint16(body, uint16(pad-4))
		body = append(body, 0)
		body = append(body, make([]byte, pad-4)...)
	}

	width := sizeWidth(uint64(len(body)))
	out := make([]byte, 0, 6+width+len(body)+4)
	out = append(out, "OHDR"...)
	out = append(out, 2, uint8(bits.TrailingZeros(uint(width))))
	for i := 0; i < width; i++ {
		out = append(out, byte(len(body)>>(8*i)))
	}
	out = append(out, body...)
	return binary.LittleEndian.AppendUint32(out, binpkg.Lookup3Checksum(out)), nil
}

// sizeWidth picks the 1, 2, 4 or 8-byte field that holds n.
func sizeWidth(n uint64) int {
	switch {
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	}
	return 8
}
