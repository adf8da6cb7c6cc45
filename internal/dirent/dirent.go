// Package dirent encodes and decodes directory entries.
//
// Both entry variants share a prefix of mimetype index, namespace byte and
// revision. The mimetype index is the only discriminator: the value
// zimtype.RedirectMimeIndex marks a redirect.
package dirent

import (
	"fmt"

	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/zimtype"
)

// fixedSize is the size of the numeric fields shared by both variants
// (mimetype u32, namespace u8, revision u32).
const fixedSize = 4 + 1 + 4

// Size returns the encoded length of e.
func Size(e *zimtype.Entry) (int, error) {
	var n int
	switch e.Kind {
	case zimtype.KindContent:
		n = fixedSize + 4 + 4
	case zimtype.KindRedirect:
		n = fixedSize + 4
	default:
		return 0, fmt.Errorf("%w: unknown entry kind %d", zimtype.ErrFormat, e.Kind)
	}
	return n + len(e.URL) + 1 + len(e.Title) + 1, nil
}

// Encode writes e to w.
func Encode(w *cursor.Writer, e *zimtype.Entry) error {
	switch e.Kind {
	case zimtype.KindContent:
		if e.MimeIndex == zimtype.RedirectMimeIndex {
			return fmt.Errorf("%w: content entry %q uses the redirect mimetype index", zimtype.ErrFormat, e.URL)
		}
		w.PutUint32(e.MimeIndex)
		w.PutUint8(byte(e.Namespace))
		w.PutUint32(e.Revision)
		w.PutUint32(e.ClusterNumber)
		w.PutUint32(e.BlobNumber)
	case zimtype.KindRedirect:
		w.PutUint32(zimtype.RedirectMimeIndex)
		w.PutUint8(byte(e.Namespace))
		w.PutUint32(e.Revision)
		w.PutUint32(e.RedirectIndex)
	default:
		return fmt.Errorf("%w: unknown entry kind %d", zimtype.ErrFormat, e.Kind)
	}
	if err := w.PutString(e.URL); err != nil {
		return fmt.Errorf("%w: url %q: %v", zimtype.ErrFormat, e.URL, err)
	}
	if err := w.PutString(e.Title); err != nil {
		return fmt.Errorf("%w: title of %q: %v", zimtype.ErrFormat, e.URL, err)
	}
	return nil
}

// Decode reads one entry at the reader's position.
func Decode(r *cursor.Reader) (zimtype.Entry, error) {
	start := r.Pos()
	e, err := decode(r)
	if err != nil {
		_ = r.Seek(start) //nolint:errcheck // start was a valid position
		return zimtype.Entry{}, fmt.Errorf("%w: directory entry at %d: %v", zimtype.ErrFormat, start, err)
	}
	return e, nil
}

func decode(r *cursor.Reader) (zimtype.Entry, error) {
	var e zimtype.Entry
	var err error

	if e.MimeIndex, err = r.Uint32(); err != nil {
		return e, err
	}
	ns, err := r.Uint8()
	if err != nil {
		return e, err
	}
	e.Namespace = zimtype.Namespace(ns)
	if e.Revision, err = r.Uint32(); err != nil {
		return e, err
	}

	if e.MimeIndex == zimtype.RedirectMimeIndex {
		e.Kind = zimtype.KindRedirect
		if e.RedirectIndex, err = r.Uint32(); err != nil {
			return e, err
		}
	} else {
		e.Kind = zimtype.KindContent
		if e.ClusterNumber, err = r.Uint32(); err != nil {
			return e, err
		}
		if e.BlobNumber, err = r.Uint32(); err != nil {
			return e, err
		}
	}

	if e.URL, err = r.String(); err != nil {
		return e, err
	}
	if e.Title, err = r.String(); err != nil {
		return e, err
	}
	return e, nil
}
