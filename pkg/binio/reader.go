// Package binio provides little-endian cursors over in-memory byte buffers.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a read would run past the end of the buffer.
var ErrShortBuffer = errors.New("read past end of buffer")

// Reader reads fixed-width little-endian values from a byte slice.
//
// The first failed read is remembered; every later read returns a zero value
// and Err reports that first failure.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Err returns the first error encountered by the reader.
func (r *Reader) Err() error {
	return r.err
}

// Pos returns the current read offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Size returns the length of the underlying buffer.
func (r *Reader) Size() int {
	return len(r.buf)
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return r.fail(fmt.Errorf("seek to %d of %d: %w", pos, len(r.buf), ErrShortBuffer))
	}
	r.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if _, ok := r.take(n); !ok {
		return r.err
	}
	return nil
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return r.err
}

// take returns the next n bytes without copying them.
func (r *Reader) take(n int) ([]byte, bool) {
	if r.err != nil {
		return nil, false
	}
	if n < 0 || n > len(r.buf)-r.pos {
		r.fail(fmt.Errorf("reading %d bytes at offset %d (have %d): %w", n, r.pos, len(r.buf)-r.pos, ErrShortBuffer))
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	b, ok := r.take(1)
	if !ok {
		return 0
	}
	return b[0]
}

// ReadBool reads a one-byte boolean.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	b, ok := r.take(4)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() int64 {
	b, ok := r.take(8)
	if !ok {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// ReadFloat32 reads an IEEE-754 single precision float.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) []byte {
	b, ok := r.take(n)
	if !ok {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadString reads a string with an int32 length prefix.
// A length of zero or less yields ok == false so callers can substitute a
// fallback name.
func (r *Reader) ReadString() (s string, ok bool) {
	n := r.ReadInt32()
	if r.err != nil || n <= 0 {
		return "", false
	}
	b, ok := r.take(int(n))
	if !ok {
		return "", false
	}
	return string(b), true
}
