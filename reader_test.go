package zim

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zim/internal/testutil"
	"github.com/meigma/zim/internal/zimtype"
)

func TestOpenBadMagic(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, testutil.Archive{
		Header: func(h *zimtype.Header) { h.MagicNumber = 0x12345678 },
	})

	r, err := OpenBytes(data)
	require.ErrorIs(t, err, ErrFormat)
	assert.Nil(t, r)
}

func TestOpenRejectsCorruptArchives(t *testing.T) {
	t.Parallel()

	valid := testutil.Archive{
		MimeTypes: []string{MimeTypePlain},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "a", "", 0, 0, 0),
		},
		Clusters: [][]byte{testutil.PackCluster(t, CompressionNone, []byte("a"))},
	}
	_, err := OpenBytes(testutil.Build(t, valid))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header func(h *zimtype.Header)
		data   func([]byte) []byte
	}{
		{name: "count mismatch", header: func(h *zimtype.Header) { h.RedirectCount = 1 }},
		{name: "article count", header: func(h *zimtype.Header) { h.ArticleCount, h.RedirectCount = 0, 1 }},
		{name: "mimetype list past end", header: func(h *zimtype.Header) { h.MimeListPos = 1 << 40 }},
		{name: "index table past end", header: func(h *zimtype.Header) { h.IndexPtrPos = 1 << 40 }},
		{name: "cluster table past end", header: func(h *zimtype.Header) { h.ClusterCount = 1000 }},
		{name: "truncated header", data: func(b []byte) []byte { return b[:HeaderSize-1] }},
		{name: "empty", data: func([]byte) []byte { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := valid
			a.Header = tt.header
			data := testutil.Build(t, a)
			if tt.data != nil {
				data = tt.data(data)
			}
			r, err := OpenBytes(data)
			require.ErrorIs(t, err, ErrFormat)
			assert.Nil(t, r)
		})
	}
}

func TestOpenRejectsMimeIndexOutOfRange(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypePlain},
		Entries:   []Entry{NewContentEntry(NamespaceArticle, "a", "", 3, 0, 0)},
		Clusters:  [][]byte{testutil.PackCluster(t, CompressionNone, []byte("a"))},
	})
	_, err := OpenBytes(data)
	require.ErrorIs(t, err, ErrFormat)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.zim")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFormat)
}

func multiBlobArchive(t *testing.T, c Compression) []byte {
	t.Helper()
	return testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypePlain},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "empty", "", 0, 0, 0),
			NewContentEntry(NamespaceArticle, "five", "", 0, 0, 1),
			NewContentEntry(NamespaceArticle, "hundred", "", 0, 0, 2),
		},
		Clusters: [][]byte{testutil.PackCluster(t, c,
			nil,
			[]byte("12345"),
			bytes.Repeat([]byte("h"), 100),
		)},
	})
}

func TestReaderBlobBoundaries(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressionNone, CompressionZlib} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			r, err := OpenBytes(multiBlobArchive(t, c))
			require.NoError(t, err)

			for url, want := range map[string]int{"empty": 0, "five": 5, "hundred": 100} {
				got, err := r.ContentByPath(NamespaceArticle, url)
				require.NoError(t, err)
				assert.Len(t, got, want, url)
			}
			got, err := r.ContentByPath(NamespaceArticle, "five")
			require.NoError(t, err)
			assert.Equal(t, "12345", string(got))
		})
	}
}

func TestReaderInvalidBlobAndCluster(t *testing.T) {
	t.Parallel()

	r, err := OpenBytes(multiBlobArchive(t, CompressionNone))
	require.NoError(t, err)

	_, err = r.Content(NewContentEntry(NamespaceArticle, "x", "", 0, 0, 7))
	require.ErrorIs(t, err, ErrInvalidBlob)
	require.ErrorIs(t, err, ErrLookup)

	_, err = r.Content(NewContentEntry(NamespaceArticle, "x", "", 0, 4, 0))
	require.ErrorIs(t, err, ErrInvalidCluster)
	require.ErrorIs(t, err, ErrLookup)
}

func TestReaderHugeBlobNumber(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypePlain},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "ok", "", 0, 0, 0),
			NewContentEntry(NamespaceArticle, "huge", "", 0, 0, math.MaxUint32),
			NewContentEntry(NamespaceArticle, "big", "", 0, 0, 50_000_000),
		},
		Clusters: [][]byte{testutil.PackCluster(t, CompressionNone, []byte("fine"))},
	})
	r, err := OpenBytes(data)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	for _, url := range []string{"huge", "big"} {
		_, err = r.ContentByPath(NamespaceArticle, url)
		require.ErrorIs(t, err, ErrInvalidBlob, url)
	}

	got, err := r.ContentByPath(NamespaceArticle, "ok")
	require.NoError(t, err)
	assert.Equal(t, "fine", string(got))
}

func TestReaderUnsupportedCompressionIsolated(t *testing.T) {
	t.Parallel()

	good := testutil.PackCluster(t, CompressionZlib, []byte("readable"))
	// A bzip2 selector followed by a plausible offset table.
	bad := []byte{byte(CompressionBzip2), 0, 0, 0, 0, 3, 0, 0, 0, 'B', 'Z', 'h'}

	data := testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypePlain},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "bad", "", 0, 0, 0),
			NewContentEntry(NamespaceArticle, "good", "", 0, 1, 0),
		},
		Clusters: [][]byte{bad, good},
	})
	r, err := OpenBytes(data)
	require.NoError(t, err)

	_, err = r.ContentByPath(NamespaceArticle, "bad")
	require.ErrorIs(t, err, ErrUnsupportedCompression)

	got, err := r.ContentByPath(NamespaceArticle, "good")
	require.NoError(t, err)
	assert.Equal(t, "readable", string(got))

	// Failures are not cached; the error repeats.
	_, err = r.ContentByPath(NamespaceArticle, "bad")
	require.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestReaderLegacyIndexPosition(t *testing.T) {
	t.Parallel()

	data := testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypeHTML},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "index.html", "Home", 0, 0, 0),
		},
		Clusters:    [][]byte{testutil.PackCluster(t, CompressionZlib, []byte("<p>legacy</p>"))},
		MainPage:    0,
		HasMainPage: true,
		LegacyIndex: true,
	})
	r, err := OpenBytes(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(HeaderSize), r.Header().IndexPtrPos)

	main, err := r.MainPage()
	require.NoError(t, err)
	got, err := r.Content(main)
	require.NoError(t, err)
	assert.Equal(t, "<p>legacy</p>", string(got))
}

func redirectArchive(t *testing.T) []byte {
	t.Helper()
	return testutil.Build(t, testutil.Archive{
		MimeTypes: []string{MimeTypeHTML},
		Entries: []Entry{
			NewContentEntry(NamespaceArticle, "target", "Target", 0, 0, 0),
			NewRedirectEntry(NamespaceArticle, "one", "", 0),
			NewRedirectEntry(NamespaceArticle, "two", "", 1),
			NewRedirectEntry(NamespaceArticle, "loop", "", 3),
			NewRedirectEntry(NamespaceArticle, "dangling", "", 99),
		},
		Clusters:    [][]byte{testutil.PackCluster(t, CompressionNone, []byte("content"))},
		MainPage:    1,
		HasMainPage: true,
	})
}

func TestReaderRedirects(t *testing.T) {
	t.Parallel()

	r, err := OpenBytes(redirectArchive(t))
	require.NoError(t, err)

	one, err := r.EntryByPath(NamespaceArticle, "one")
	require.NoError(t, err)
	assert.True(t, one.IsRedirect())
	assert.Empty(t, r.MimeType(one))

	_, err = r.Content(one)
	require.ErrorIs(t, err, ErrRedirectEntry)

	target, err := r.Resolve(one)
	require.NoError(t, err)
	assert.Equal(t, "target", target.URL)
	assert.Equal(t, uint32(0), target.Index)

	got, err := r.ContentByPath(NamespaceArticle, "one")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	main, err := r.MainPage()
	require.NoError(t, err)
	assert.True(t, main.IsRedirect())

	t.Run("single hop by default", func(t *testing.T) {
		t.Parallel()
		_, err := r.ContentByPath(NamespaceArticle, "two")
		require.ErrorIs(t, err, ErrRedirectLimit)
		require.ErrorIs(t, err, ErrLookup)
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()
		_, err := r.ContentByPath(NamespaceArticle, "loop")
		require.ErrorIs(t, err, ErrRedirectLimit)
	})

	t.Run("dangling target", func(t *testing.T) {
		t.Parallel()
		_, err := r.ContentByPath(NamespaceArticle, "dangling")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReaderMaxRedirectHops(t *testing.T) {
	t.Parallel()

	r, err := OpenBytes(redirectArchive(t), WithMaxRedirectHops(2))
	require.NoError(t, err)

	got, err := r.ContentByPath(NamespaceArticle, "two")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	_, err = r.ContentByPath(NamespaceArticle, "loop")
	require.ErrorIs(t, err, ErrRedirectLimit)
}

func TestReaderLookups(t *testing.T) {
	t.Parallel()

	r := finalize(t, func(w *Writer) {
		mustAdd(t, w, NamespaceArticle, "wiki/Go", "Go", "go", MimeTypeHTML)
		mustAdd(t, w, NamespaceArticle, "wiki/Gopher", "", "gopher", MimeTypeHTML)
		mustAdd(t, w, NamespaceArticle, "about", "", "about", MimeTypeHTML)
		mustAdd(t, w, NamespaceImage, "wiki/logo.png", "", "png", MimeTypePNG)
	})

	var urls []string
	for e := range r.EntriesWithPrefix(NamespaceArticle, "wiki/") {
		urls = append(urls, e.URL)
	}
	assert.Equal(t, []string{"wiki/Go", "wiki/Gopher"}, urls)

	_, err := r.EntryByPath(NamespaceImage, "wiki/Go")
	require.ErrorIs(t, err, ErrNotFound)

	e, err := r.EntryAt(1)
	require.NoError(t, err)
	assert.Equal(t, "wiki/Gopher", e.DisplayTitle())

	_, err = r.EntryAt(4)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.EntryAt(-1)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, map[Namespace]int{NamespaceArticle: 3, NamespaceImage: 1}, r.NamespaceCounts())
	assert.Equal(t, 4, r.EntryCount())
	assert.Len(t, slices.Collect(r.Entries()), 4)
}

func TestReaderClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	mustAdd(t, w, NamespaceArticle, "a", "", "A", MimeTypePlain)
	require.NoError(t, w.Finalize())

	r, err := OpenBytes(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ContentByPath(NamespaceArticle, "a")
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.EntryByPath(NamespaceArticle, "a")
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.EntryAt(0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.MainPage()
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.Resolve(NewRedirectEntry(NamespaceArticle, "b", "", 0))
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.Metadata("Title")
	require.ErrorIs(t, err, ErrClosed)

	assert.Zero(t, r.EntryCount())
	assert.Equal(t, Header{}, r.Header())
	assert.Empty(t, r.MimeTypes())
	assert.Empty(t, r.ListArticles())
	assert.Empty(t, r.ListRedirects())
	assert.Empty(t, r.NamespaceCounts())
	assert.Empty(t, slices.Collect(r.Entries()))
	assert.Empty(t, slices.Collect(r.EntriesWithPrefix(NamespaceArticle, "")))
}

func TestReaderConcurrentContent(t *testing.T) {
	t.Parallel()

	const articles = 40
	for _, cacheSize := range []int{0, 4, DefaultClusterCacheSize} {
		t.Run(fmt.Sprintf("cache=%d", cacheSize), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(&buf)
			require.NoError(t, err)
			for i := range articles {
				mustAdd(t, w, NamespaceArticle, fmt.Sprintf("p%02d", i), "", fmt.Sprintf("body %d", i), MimeTypePlain)
			}
			require.NoError(t, w.Finalize())

			r, err := OpenBytes(buf.Bytes(), WithClusterCacheSize(cacheSize))
			require.NoError(t, err)
			defer r.Close()

			var wg sync.WaitGroup
			errs := make(chan error, 8*articles)
			for g := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range articles {
						n := (i + g) % articles
						got, err := r.ContentByPath(NamespaceArticle, fmt.Sprintf("p%02d", n))
						if err != nil {
							errs <- err
							return
						}
						if string(got) != fmt.Sprintf("body %d", n) {
							errs <- fmt.Errorf("p%02d: got %q", n, got)
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}
		})
	}
}

func TestReaderMaxClusterSize(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.AddArticle(NamespaceArticle, "big", "", bytes.Repeat([]byte("x"), 1024), MimeTypePlain)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	r, err := OpenBytes(buf.Bytes(), WithMaxClusterSize(512))
	require.NoError(t, err)
	_, err = r.ContentByPath(NamespaceArticle, "big")
	require.ErrorIs(t, err, ErrSizeOverflow)
}
