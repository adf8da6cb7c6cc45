// Package mimetab implements the archive's deduplicated mimetype list.
package mimetab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/zimtype"
)

// MaxEntries is the table capacity. Index RedirectMimeIndex is reserved.
const MaxEntries = int(zimtype.RedirectMimeIndex)

var (
	// ErrEmpty is returned when interning an empty mimetype.
	ErrEmpty = errors.New("mimetab: empty mimetype")

	// ErrInvalid is returned when interning a mimetype containing NUL.
	ErrInvalid = errors.New("mimetab: mimetype contains NUL byte")

	// ErrFull is returned when the table has no free index left.
	ErrFull = errors.New("mimetab: table full")
)

// Table is an ordered list of unique mimetypes. Indices are assigned in
// order of first appearance and never change.
type Table struct {
	types []string
	index map[string]uint32
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]uint32)}
}

// Intern returns the index of mime, appending it if not yet present.
func (t *Table) Intern(mime string) (uint32, error) {
	if mime == "" {
		return 0, ErrEmpty
	}
	if strings.IndexByte(mime, 0) >= 0 {
		return 0, ErrInvalid
	}
	if i, ok := t.index[mime]; ok {
		return i, nil
	}
	if len(t.types) >= MaxEntries {
		return 0, ErrFull
	}
	i := uint32(len(t.types)) //nolint:gosec // bounded by MaxEntries
	t.types = append(t.types, mime)
	t.index[mime] = i
	return i, nil
}

// Len returns the number of interned mimetypes.
func (t *Table) Len() int {
	return len(t.types)
}

// Lookup returns the mimetype at index i.
func (t *Table) Lookup(i uint32) (string, bool) {
	if uint64(i) >= uint64(len(t.types)) {
		return "", false
	}
	return t.types[i], true
}

// Strings returns a copy of the mimetypes in index order.
func (t *Table) Strings() []string {
	out := make([]string, len(t.types))
	copy(out, t.types)
	return out
}

// EncodedSize returns the number of bytes Encode writes.
func (t *Table) EncodedSize() int {
	n := 1
	for _, s := range t.types {
		n += len(s) + 1
	}
	return n
}

// Encode writes each mimetype NUL-terminated, followed by one extra NUL
// marking the end of the table.
func (t *Table) Encode(w *cursor.Writer) error {
	for _, s := range t.types {
		if err := w.PutString(s); err != nil {
			return err
		}
	}
	w.PutUint8(0)
	return nil
}

// Decode reads a table starting at the reader's position. It stops at the
// first empty string (the double terminator) or at the end of the buffer;
// an unterminated trailing fragment is ignored.
func Decode(r *cursor.Reader) (*Table, error) {
	t := New()
	for r.Remaining() > 0 {
		s, err := r.String()
		if err != nil {
			break
		}
		if s == "" {
			break
		}
		if _, ok := t.index[s]; ok {
			// Duplicates keep their slot so later indices stay aligned.
			t.types = append(t.types, s)
			continue
		}
		if len(t.types) >= MaxEntries {
			return nil, fmt.Errorf("%w: too many mimetypes", zimtype.ErrFormat)
		}
		t.index[s] = uint32(len(t.types)) //nolint:gosec // bounded by MaxEntries
		t.types = append(t.types, s)
	}
	return t, nil
}
