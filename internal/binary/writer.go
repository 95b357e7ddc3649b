package binary

import "io"

// Writer encodes values into an io.WriterAt at a moving position.
type Writer struct {
	cursor
	w io.WriterAt
}

// NewWriter returns a Writer at position 0.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{cursor: cursor{cfg: cfg}, w: w}
}

// At returns a copy of w positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	nw := *w
	nw.pos = offset
	return &nw
}

// WriteBytes writes data and advances past what was written.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

func (w *Writer) WriteUint8(v uint8) error { return w.WriteUintN(uint64(v), 1) }

func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }

func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }

func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteUintN writes v as an n-byte unsigned integer.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	PutUint(w.cfg.ByteOrder, buf, v)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}

// UndefinedOffset returns the all-ones "no address" value.
func (w *Writer) UndefinedOffset() uint64 {
	return undefined(w.cfg.OffsetSize)
}
