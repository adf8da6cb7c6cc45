package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zim/internal/cluster"
	"github.com/meigma/zim/internal/zimtype"
)

// memSource serves clusters packed in memory and counts decodes.
type memSource struct {
	mu       sync.Mutex
	clusters [][]byte
	counts   []int
	decodes  map[uint32]int
}

func newMemSource(t *testing.T, blobs ...[][]byte) *memSource {
	t.Helper()
	s := &memSource{decodes: make(map[uint32]int)}
	for _, b := range blobs {
		data, err := cluster.Pack(b, zimtype.CompressionZlib, false)
		require.NoError(t, err)
		s.clusters = append(s.clusters, data)
		s.counts = append(s.counts, len(b))
	}
	return s
}

func (s *memSource) Cluster(n uint32) (*cluster.Cluster, error) {
	s.mu.Lock()
	s.decodes[n]++
	s.mu.Unlock()
	if int(n) >= len(s.clusters) {
		return nil, zimtype.ErrInvalidCluster
	}
	return cluster.Decode(s.clusters[n], s.counts[n])
}

func content(ns zimtype.Namespace, url string, c, b uint32) *Entry {
	e := zimtype.NewContentEntry(ns, url, "", 0, c, b)
	return &e
}

func TestProcessWritesFiles(t *testing.T) {
	t.Parallel()

	src := newMemSource(t,
		[][]byte{[]byte("<html>"), []byte("body{}")},
		[][]byte{[]byte("PNG")},
	)
	redirect := zimtype.NewRedirectEntry(zimtype.NamespaceArticle, "home", "", 0)
	entries := []*Entry{
		content(zimtype.NamespaceArticle, "index.html", 0, 0),
		content(zimtype.NamespaceStyle, "css/main.css", 0, 1),
		content(zimtype.NamespaceImage, "logo.png", 1, 0),
		&redirect,
	}

	dest := t.TempDir()
	stats, err := NewProcessor(src, WithWorkers(2)).Process(context.Background(), entries, NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, uint64(15), stats.TotalBytes)

	got, err := os.ReadFile(filepath.Join(dest, "A", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "S", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(got))

	assert.Equal(t, 1, src.decodes[0], "cluster decoded once per group")
	assert.Equal(t, 1, src.decodes[1])
}

func TestProcessSkipsExisting(t *testing.T) {
	t.Parallel()

	src := newMemSource(t, [][]byte{[]byte("new")})
	dest := t.TempDir()
	path := filepath.Join(dest, "A", "page")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	entries := []*Entry{content(zimtype.NamespaceArticle, "page", 0, 0)}

	stats, err := NewProcessor(src).Process(context.Background(), entries, NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	stats, err = NewProcessor(src).Process(context.Background(), entries, NewFileSink(dest, WithOverwrite(true)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestProcessRejectsInvalidPath(t *testing.T) {
	t.Parallel()

	src := newMemSource(t, [][]byte{[]byte("x")})
	entries := []*Entry{content(zimtype.NamespaceArticle, "../escape", 0, 0)}

	_, err := NewProcessor(src, WithWorkers(-1)).Process(context.Background(), entries, NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, fs.ErrInvalid)
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestProcessPropagatesLookupErrors(t *testing.T) {
	t.Parallel()

	src := newMemSource(t, [][]byte{[]byte("x")})

	_, err := NewProcessor(src).Process(context.Background(),
		[]*Entry{content(zimtype.NamespaceArticle, "a", 0, 5)}, NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, zimtype.ErrInvalidBlob)

	_, err = NewProcessor(src).Process(context.Background(),
		[]*Entry{content(zimtype.NamespaceArticle, "b", 9, 0)}, NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, zimtype.ErrInvalidCluster)
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	src := newMemSource(t, [][]byte{[]byte("x")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(src).Process(ctx,
		[]*Entry{content(zimtype.NamespaceArticle, "a", 0, 0)}, NewFileSink(t.TempDir()))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestGroupByCluster(t *testing.T) {
	t.Parallel()

	entries := []*Entry{
		content(zimtype.NamespaceArticle, "a", 0, 0),
		content(zimtype.NamespaceArticle, "b", 0, 1),
		content(zimtype.NamespaceArticle, "c", 2, 0),
	}
	groups := groupByCluster(entries)
	require.Len(t, groups, 2)
	assert.Equal(t, uint32(0), groups[0].cluster)
	assert.Len(t, groups[0].entries, 2)
	assert.Equal(t, uint32(2), groups[1].cluster)
}

func TestFileSinkCreatesDestAndCloses(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "nested", "out")
	sink := NewFileSink(dest)
	src := newMemSource(t, [][]byte{[]byte("hello")})

	stats, err := NewProcessor(src).Process(context.Background(),
		[]*Entry{content(zimtype.NamespaceArticle, "greeting.txt", 0, 0)}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	data, err := os.ReadFile(filepath.Join(dest, "A", "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dest, "A", tempPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	_, err = sink.Writer(content(zimtype.NamespaceArticle, "late.txt", 0, 0))
	require.ErrorIs(t, err, fs.ErrClosed)
}

func TestFileSinkDiscard(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	sink := NewFileSink(dest)
	defer sink.Close()

	w, err := sink.Writer(content(zimtype.NamespaceArticle, "draft.txt", 0, 0))
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Discard())

	entries, err := os.ReadDir(filepath.Join(dest, "A"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
