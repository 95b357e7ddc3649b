package superblock

import (
	"encoding/binary"

	binpkg "github.com/robert-malhotra/turbslice/internal/binary"
)

// New returns a version 3 superblock with 8-byte offsets and lengths and
// no extension.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8, ExtensionAddress: ^uint64(0)}
}

// Size is the encoded size of a version 2 or 3 superblock, checksum
// included.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Write encodes sb as a version 2 or 3 superblock at w's position and
// returns the number of bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	version := max(sb.Version, 2)
	buf := make([]byte, 0, sb.Size())
	buf = append(buf, Signature...)
	buf = append(buf, version, sb.OffsetSize, sb.LengthSize, sb.Flags)
	for _, a := range []uint64{sb.BaseAddress, sb.ExtensionAddress, sb.EOFAddress, sb.RootGroupAddress} {
		for i := 0; i < int(sb.OffsetSize); i++ {
			buf = append(buf, byte(a>>(8*i)))
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, binpkg.Lookup3Checksum(buf))
	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}
