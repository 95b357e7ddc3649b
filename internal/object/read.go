package object

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
	"github.com/robert-malhotra/turbslice/internal/message"
)

// Version 2 header flags.
const (
	flagChunkSizeBits  = 0x03
	flagCreationOrder  = 0x04
	flagPhaseChange    = 0x10
	flagTimes          = 0x20
	maxContinuations   = 1 << 12
	v1PrefixSize       = 16
	v2ChecksumSize     = 4
	continuationPrefix = 4

	// message flag: the body is a reference into the shared message heap
	msgShared = 0x02
)

// rawMessage is an undecoded header message.
type rawMessage struct {
	typ   message.Type
	flags uint8
	data  []byte
}

// Read decodes the object header at addr, following continuation messages.
// Messages that fail to decode are left out.
func Read(r *binpkg.Reader, addr uint64) (*Header, error) {
	peek, err := r.At(int64(addr)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	switch {
	case string(peek) == "OHDR":
		return readV2(r, addr)
	case peek[0] == 1:
		return readV1(r, addr)
	}
	return nil, fmt.Errorf("%w at address %d", ErrInvalidHeader, addr)
}

// readV1 decodes a version 1 header: version, reserved, message count,
// reference count and chunk size, padded to 16 bytes.
func readV1(r *binpkg.Reader, addr uint64) (*Header, error) {
	prefix, err := r.At(int64(addr)).ReadBytes(v1PrefixSize)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	size := binary.LittleEndian.Uint32(prefix[8:])
	block, err := r.At(int64(addr) + v1PrefixSize).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading object header messages: %w", err)
	}

	h := &Header{Version: 1, Address: addr}
	load := func(c *message.Continuation) ([]rawMessage, error) {
		b, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
		if err != nil {
			return nil, err
		}
		return splitV1(b)
	}
	msgs, err := splitV1(block)
	if err != nil {
		return nil, err
	}
	if err := h.collect(r, msgs, load, map[uint64]bool{}); err != nil {
		return nil, err
	}
	return h, nil
}

// splitV1 cuts a block into 8-byte aligned messages, each with a type,
// size, flags and three reserved bytes in front.
func splitV1(b []byte) ([]rawMessage, error) {
	var out []rawMessage
	for len(b) >= 8 {
		typ := binary.LittleEndian.Uint16(b)
		size := int(binary.LittleEndian.Uint16(b[2:]))
		flags := b[4]
		b = b[8:]
		if size > len(b) {
			return nil, fmt.Errorf("%w: message of %d bytes overruns its block", ErrInvalidHeader, size)
		}
		out = append(out, rawMessage{message.Type(typ), flags, b[:size]})
		b = b[min((size+7)&^7, len(b)):]
	}
	return out, nil
}

func readV2(r *binpkg.Reader, addr uint64) (*Header, error) {
	fixed, err := r.At(int64(addr)).ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	if fixed[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, fixed[4])
	}
	flags := fixed[5]
	prefix := 6
	if flags&flagTimes != 0 {
		prefix += 16
	}
	if flags&flagPhaseChange != 0 {
		prefix += 4
	}
	width := 1 << (flags & flagChunkSizeBits)

	head, err := r.At(int64(addr)).ReadBytes(prefix + width)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}
	var size uint64
	for i := width - 1; i >= 0; i-- {
		size = size<<8 | uint64(head[prefix+i])
	}
	chunk, err := readSealed(r, int64(addr), prefix+width+int(size))
	if err != nil {
		return nil, err
	}

	order := flags&flagCreationOrder != 0
	h := &Header{Version: 2, Address: addr, Flags: flags}
	load := func(c *message.Continuation) ([]rawMessage, error) {
		b, err := readSealed(r, int64(c.Offset), int(c.Length)-v2ChecksumSize)
		if err != nil {
			return nil, err
		}
		if string(b[:continuationPrefix]) != "OCHK" {
			return nil, fmt.Errorf("%w: continuation block signature %q", ErrInvalidHeader, b[:4])
		}
		return splitV2(b[continuationPrefix:], order), nil
	}
	if err := h.collect(r, splitV2(chunk[prefix+width:], order), load, map[uint64]bool{}); err != nil {
		return nil, err
	}
	return h, nil
}

// readSealed reads n bytes at off and checks the lookup3 checksum that
// follows them.
func readSealed(r *binpkg.Reader, off int64, n int) ([]byte, error) {
	if n < continuationPrefix {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrInvalidHeader, n)
	}
	b, err := r.At(off).ReadBytes(n + v2ChecksumSize)
	if err != nil {
		return nil, fmt.Errorf("reading object header block: %w", err)
	}
	if binary.LittleEndian.Uint32(b[n:]) != binpkg.Lookup3Checksum(b[:n]) {
		return nil, fmt.Errorf("%w at %d", ErrChecksumMismatch, off)
	}
	return b[:n], nil
}

// splitV2 cuts a block into messages with a one-byte type, two-byte size,
// flags and optional creation order. Trailing bytes too short for a
// message header are a gap.
func splitV2(b []byte, creationOrder bool) []rawMessage {
	hdr := 4
	if creationOrder {
		hdr += 2
	}
	var out []rawMessage
	for len(b) >= hdr {
		size := int(binary.LittleEndian.Uint16(b[1:]))
		if hdr+size > len(b) {
			break
		}
		out = append(out, rawMessage{message.Type(b[0]), b[3], b[hdr : hdr+size]})
		b = b[hdr+size:]
	}
	return out
}

// collect decodes msgs into h, splicing in continuation blocks where
// their messages appear.
func (h *Header) collect(r *binpkg.Reader, msgs []rawMessage, load func(*message.Continuation) ([]rawMessage, error), seen map[uint64]bool) error {
	for _, m := range msgs {
		switch m.typ {
		case message.TypeNIL:
		case message.TypeObjectHeaderContinuation:
			c, err := message.ParseContinuation(m.data, r.Config())
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
			}
			if seen[c.Offset] || len(seen) >= maxContinuations {
				return fmt.Errorf("%w: continuation cycle at %d", ErrInvalidHeader, c.Offset)
			}
			seen[c.Offset] = true
			more, err := load(c)
			if err != nil {
				return fmt.Errorf("continuation block at %d: %w", c.Offset, err)
			}
			if err := h.collect(r, more, load, seen); err != nil {
				return err
			}
		default:
			if m.flags&msgShared != 0 {
				continue
			}
			msg, err := message.Parse(m.typ, m.data, r.Config())
			if err != nil {
				continue
			}
			h.Messages = append(h.Messages, msg)
		}
	}
	return nil
}
