// Package cursor provides position-tracked little-endian reads and writes
// over byte slices.
package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
)

// ErrOutOfBounds is returned when a read or seek would cross the buffer end.
var ErrOutOfBounds = errors.New("cursor: out of bounds")

// ErrInvalidString is returned when a string to be written contains NUL.
var ErrInvalidString = errors.New("cursor: string contains NUL byte")

// Reader reads sequentially from a byte slice.
// A failed read leaves the position unchanged.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current position.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the length of the underlying buffer.
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Seek moves to the absolute position pos. Seeking to Len() is allowed.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return ErrOutOfBounds
	}
	r.pos = pos
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, ErrOutOfBounds
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes returns the next n bytes. The slice aliases the buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// String reads a NUL-terminated string and consumes the terminator.
func (r *Reader) String() (string, error) {
	i := bytes.IndexByte(r.data[r.pos:], 0)
	if i < 0 {
		return "", ErrOutOfBounds
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}

// Writer appends to a growable buffer. The buffer doubles when a write
// needs more room, so callers never size it up front.
type Writer struct {
	data []byte
	pos  int
	end  int
}

// NewWriter returns a Writer with the given initial capacity hint.
func NewWriter(capacity int) *Writer {
	if capacity < 0 {
		capacity = 0
	}
	return &Writer{data: make([]byte, capacity)}
}

// Pos returns the current position.
func (w *Writer) Pos() int {
	return w.pos
}

// Len returns the number of bytes written so far, including any gap
// left by seeking forward.
func (w *Writer) Len() int {
	return w.end
}

// Seek moves to the absolute position pos. Writing past the previous end
// zero-fills the gap.
func (w *Writer) Seek(pos int) error {
	if pos < 0 {
		return ErrOutOfBounds
	}
	w.pos = pos
	return nil
}

// Bytes returns the written bytes. The slice aliases the buffer until the
// next write.
func (w *Writer) Bytes() []byte {
	return w.data[:w.end]
}

func (w *Writer) grow(n int) []byte {
	need := w.pos + n
	if need > len(w.data) {
		size := max(len(w.data)*2, need, 64)
		data := make([]byte, size)
		copy(data, w.data[:w.end])
		w.data = data
	}
	b := w.data[w.pos:need]
	w.pos = need
	if need > w.end {
		w.end = need
	}
	return b
}

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) {
	w.grow(1)[0] = v
}

// PutUint16 writes a little-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.grow(2), v)
}

// PutUint32 writes a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.grow(4), v)
}

// PutUint64 writes a little-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.grow(8), v)
}

// PutBytes writes p verbatim.
func (w *Writer) PutBytes(p []byte) {
	copy(w.grow(len(p)), p)
}

// PutString writes s followed by a NUL terminator.
func (w *Writer) PutString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return ErrInvalidString
	}
	b := w.grow(len(s) + 1)
	copy(b, s)
	b[len(s)] = 0
	return nil
}
