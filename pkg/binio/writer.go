package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer appends little-endian values to a growable buffer.
// Seek allows overwriting earlier bytes; writes past the end extend the buffer.
type Writer struct {
	buf []byte
	pos int
}

// Placeholder marks a reserved int32 slot that is filled in later.
type Placeholder struct {
	pos int
}

// NewWriter creates an empty writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the total number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Pos returns the current write offset.
func (w *Writer) Pos() int {
	return w.pos
}

// Seek moves the cursor to an absolute offset within the written data.
func (w *Writer) Seek(pos int) error {
	if pos < 0 || pos > len(w.buf) {
		return fmt.Errorf("seek to %d of %d: %w", pos, len(w.buf), ErrShortBuffer)
	}
	w.pos = pos
	return nil
}

// put writes b at the cursor, overwriting or extending as needed.
func (w *Writer) put(b []byte) {
	end := w.pos + len(b)
	if end > len(w.buf) {
		w.buf = append(w.buf[:w.pos], b...)
	} else {
		copy(w.buf[w.pos:end], b)
	}
	w.pos = end
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.put([]byte{v})
}

// WriteBool writes a one-byte boolean.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

// WriteUint32 writes a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.put(b[:])
}

// WriteInt32 writes a little-endian int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteInt64 writes a little-endian int64.
func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.put(b[:])
}

// WriteFloat32 writes an IEEE-754 single precision float.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteBytes writes b verbatim.
func (w *Writer) WriteBytes(b []byte) {
	w.put(b)
}

// WritePadded writes b followed by zero bytes up to the next multiple of align.
func (w *Writer) WritePadded(b []byte, align int) {
	w.put(b)
	if pad := AlignUp(len(b), align) - len(b); pad > 0 {
		w.put(make([]byte, pad))
	}
}

// WriteString writes s with an int32 length prefix.
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.put([]byte(s))
}

// ReserveInt32 writes a zero int32 and returns its location for a later patch.
func (w *Writer) ReserveInt32() Placeholder {
	p := Placeholder{pos: w.pos}
	w.WriteInt32(0)
	return p
}

// PatchInt32 overwrites a reserved slot and returns the cursor to where it was.
func (w *Writer) PatchInt32(p Placeholder, v int32) {
	saved := w.pos
	w.pos = p.pos
	w.WriteInt32(v)
	w.pos = saved
}

// PatchSizeSince fills a reserved slot with the number of bytes written after it.
func (w *Writer) PatchSizeSince(p Placeholder) int {
	size := w.pos - (p.pos + 4)
	w.PatchInt32(p, int32(size))
	return size
}

// AlignUp rounds size up to the next multiple of alignment.
// Alignment must be a power of two.
func AlignUp(size, alignment int) int {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		panic(fmt.Sprintf("binio: alignment %d is not a power of two", alignment))
	}
	return (size + alignment - 1) &^ (alignment - 1)
}
