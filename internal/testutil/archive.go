// Package testutil builds raw archive images for tests that need layouts
// the Writer never produces, such as multi-blob clusters or the legacy
// index position.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/zim/internal/cluster"
	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/dirent"
	"github.com/meigma/zim/internal/layout"
	"github.com/meigma/zim/internal/mimetab"
	"github.com/meigma/zim/internal/zimtype"
)

// Archive describes an archive image section by section.
type Archive struct {
	MimeTypes []string
	Entries   []zimtype.Entry

	// Clusters holds encoded clusters, see PackCluster.
	Clusters [][]byte

	// MainPage defaults to zimtype.NoMainPage when HasMainPage is false.
	MainPage    uint32
	HasMainPage bool

	// LegacyIndex writes IndexPtrPos as zero and places the index pointer
	// table directly after the header.
	LegacyIndex bool

	// Header, when non-nil, is called on the final header before it is
	// encoded so tests can corrupt individual fields.
	Header func(h *zimtype.Header)
}

// PackCluster encodes blobs as one cluster.
func PackCluster(tb testing.TB, c zimtype.Compression, blobs ...[]byte) []byte {
	tb.Helper()
	data, err := cluster.Pack(blobs, c, false)
	require.NoError(tb, err)
	return data
}

// Build serializes a. Entries are written in the given order.
func Build(tb testing.TB, a Archive) []byte {
	tb.Helper()

	mimes := mimetab.New()
	for _, m := range a.MimeTypes {
		_, err := mimes.Intern(m)
		require.NoError(tb, err)
	}

	h := zimtype.Header{
		MagicNumber:   zimtype.Magic,
		MajorVersion:  zimtype.MajorVersion,
		MinorVersion:  zimtype.MinorVersion,
		ClusterCount:  uint32(len(a.Clusters)), //nolint:gosec // test sizes
		MainPageIndex: zimtype.NoMainPage,
	}
	if a.HasMainPage {
		h.MainPageIndex = a.MainPage
	}
	for i := range a.Entries {
		h.EntryCount++
		if a.Entries[i].IsRedirect() {
			h.RedirectCount++
		} else {
			h.ArticleCount++
		}
	}

	w := cursor.NewWriter(0)
	require.NoError(tb, w.Seek(layout.HeaderSize))

	writeIndexTable := func() int {
		pos := w.Pos()
		for range a.Entries {
			w.PutUint64(0)
		}
		return pos
	}

	indexPos := -1
	if a.LegacyIndex {
		indexPos = writeIndexTable()
	}

	h.MimeListPos = uint64(w.Pos()) //nolint:gosec // non-negative
	require.NoError(tb, mimes.Encode(w))

	entryPos := make([]uint64, len(a.Entries))
	for i := range a.Entries {
		entryPos[i] = uint64(w.Pos()) //nolint:gosec // non-negative
		require.NoError(tb, dirent.Encode(w, &a.Entries[i]))
	}
	if !a.LegacyIndex {
		indexPos = writeIndexTable()
		h.IndexPtrPos = uint64(indexPos) //nolint:gosec // non-negative
	}

	h.ClusterPtrPos = uint64(w.Pos()) //nolint:gosec // non-negative
	clusterTable := w.Pos()
	for range a.Clusters {
		w.PutUint64(0)
	}
	clusterPos := make([]uint64, len(a.Clusters))
	for i, c := range a.Clusters {
		clusterPos[i] = uint64(w.Pos()) //nolint:gosec // non-negative
		w.PutBytes(c)
	}
	h.ChecksumPos = uint64(w.Pos()) //nolint:gosec // non-negative
	w.PutBytes(make([]byte, layout.ChecksumSize))
	end := w.Len()

	require.NoError(tb, w.Seek(indexPos))
	for _, p := range entryPos {
		w.PutUint64(p)
	}
	require.NoError(tb, w.Seek(clusterTable))
	for _, p := range clusterPos {
		w.PutUint64(p)
	}

	if a.Header != nil {
		a.Header(&h)
	}
	require.NoError(tb, w.Seek(0))
	layout.EncodeHeader(w, &h)
	require.Equal(tb, end, w.Len())
	return w.Bytes()
}
