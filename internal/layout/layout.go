// Package layout encodes the archive header and plans the absolute
// position of every section.
package layout

import (
	"fmt"

	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/sizing"
	"github.com/meigma/zim/internal/zimtype"
)

const (
	// HeaderSize is the encoded header length.
	HeaderSize = 80

	// ChecksumSize is the length of the trailing checksum block.
	ChecksumSize = 16

	pointerSize = 8
)

// EncodeHeader writes h at the writer's current position.
func EncodeHeader(w *cursor.Writer, h *zimtype.Header) {
	w.PutUint32(h.MagicNumber)
	w.PutUint16(h.MajorVersion)
	w.PutUint16(h.MinorVersion)
	w.PutUint32(h.EntryCount)
	w.PutUint32(h.ArticleCount)
	w.PutUint32(h.ClusterCount)
	w.PutUint32(h.RedirectCount)
	w.PutUint64(h.MimeListPos)
	w.PutUint64(h.TitleIndexPos)
	w.PutUint64(h.ClusterPtrPos)
	w.PutUint64(h.ClusterCountPos)
	w.PutUint32(h.MainPageIndex)
	w.PutUint32(h.LayoutPageIndex)
	w.PutUint64(h.ChecksumPos)
	w.PutUint64(h.IndexPtrPos)
}

// DecodeHeader parses and validates the header at the start of data.
// A zero IndexPtrPos is normalized to HeaderSize.
func DecodeHeader(data []byte) (zimtype.Header, error) {
	if len(data) < HeaderSize {
		return zimtype.Header{}, fmt.Errorf("%w: file is %d bytes, header needs %d", zimtype.ErrFormat, len(data), HeaderSize)
	}
	r := cursor.NewReader(data[:HeaderSize])

	// Reads cannot fail: the slice is exactly HeaderSize bytes.
	var h zimtype.Header
	h.MagicNumber, _ = r.Uint32()
	if h.MagicNumber != zimtype.Magic {
		return zimtype.Header{}, fmt.Errorf("%w: bad magic number %#08x", zimtype.ErrFormat, h.MagicNumber)
	}
	h.MajorVersion, _ = r.Uint16()
	h.MinorVersion, _ = r.Uint16()
	h.EntryCount, _ = r.Uint32()
	h.ArticleCount, _ = r.Uint32()
	h.ClusterCount, _ = r.Uint32()
	h.RedirectCount, _ = r.Uint32()
	h.MimeListPos, _ = r.Uint64()
	h.TitleIndexPos, _ = r.Uint64()
	h.ClusterPtrPos, _ = r.Uint64()
	h.ClusterCountPos, _ = r.Uint64()
	h.MainPageIndex, _ = r.Uint32()
	h.LayoutPageIndex, _ = r.Uint32()
	h.ChecksumPos, _ = r.Uint64()
	h.IndexPtrPos, _ = r.Uint64()
	if h.IndexPtrPos == 0 {
		h.IndexPtrPos = HeaderSize
	}
	return h, nil
}

// ReadPointers reads count absolute u64 offsets starting at pos. Every
// offset must lie inside data.
func ReadPointers(data []byte, pos uint64, count uint32, what string) ([]uint64, error) {
	if !sizing.InRange(pos, uint64(count)*pointerSize, len(data)) {
		return nil, fmt.Errorf("%w: %s table at %d overruns file", zimtype.ErrFormat, what, pos)
	}
	r := cursor.NewReader(data)
	_ = r.Seek(int(pos)) //nolint:gosec // range checked above
	ptrs := make([]uint64, count)
	for i := range ptrs {
		p, _ := r.Uint64()
		if p >= uint64(len(data)) {
			return nil, fmt.Errorf("%w: %s pointer %d is %d, past end %d", zimtype.ErrFormat, what, i, p, len(data))
		}
		ptrs[i] = p
	}
	return ptrs, nil
}

// Plan is the absolute position of every section of an archive image.
type Plan struct {
	MimeListPos   uint64
	DirectoryPos  uint64
	IndexPtrPos   uint64
	ClusterPtrPos uint64
	ClustersPos   uint64
	ChecksumPos   uint64
	Size          uint64

	// EntryPos and ClusterPos hold the start of each entry and cluster.
	EntryPos   []uint64
	ClusterPos []uint64
}

// NewPlan lays sections out in file order: header, mimetypes, directory,
// index pointers, cluster pointers, clusters, checksum.
func NewPlan(mimeSize int, entrySizes, clusterSizes []int) (*Plan, error) {
	p := &Plan{
		MimeListPos: HeaderSize,
		EntryPos:    make([]uint64, len(entrySizes)),
		ClusterPos:  make([]uint64, len(clusterSizes)),
	}
	var ok bool
	pos := p.MimeListPos

	advance := func(n uint64) {
		if !ok {
			return
		}
		pos, ok = sizing.AddUint64(pos, n)
	}

	ok = true
	advance(uint64(mimeSize)) //nolint:gosec // sizes are non-negative
	p.DirectoryPos = pos
	for i, n := range entrySizes {
		p.EntryPos[i] = pos
		advance(uint64(n)) //nolint:gosec // sizes are non-negative
	}
	p.IndexPtrPos = pos
	advance(uint64(len(entrySizes)) * pointerSize)
	p.ClusterPtrPos = pos
	advance(uint64(len(clusterSizes)) * pointerSize)
	p.ClustersPos = pos
	for i, n := range clusterSizes {
		p.ClusterPos[i] = pos
		advance(uint64(n)) //nolint:gosec // sizes are non-negative
	}
	p.ChecksumPos = pos
	advance(ChecksumSize)
	p.Size = pos

	if !ok {
		return nil, fmt.Errorf("%w: archive layout", zimtype.ErrSizeOverflow)
	}
	return p, nil
}
