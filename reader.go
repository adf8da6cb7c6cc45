package zim

import (
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"sync"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/zim/internal/cluster"
	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/dirent"
	"github.com/meigma/zim/internal/index"
	"github.com/meigma/zim/internal/layout"
	"github.com/meigma/zim/internal/mimetab"
)

// Reader defaults.
const (
	DefaultClusterCacheSize = 16
	DefaultMaxRedirectHops  = 1
	DefaultMaxClusterSize   = cluster.DefaultMaxSize
)

// Reader provides random access to the entries of an archive.
//
// All parsing happens in Open; afterwards the parsed state is immutable
// and a Reader is safe for concurrent use. Decoded clusters are cached.
type Reader struct {
	mu     sync.RWMutex
	data   []byte
	closed bool

	header      Header
	mimes       *mimetab.Table
	entries     []Entry
	idx         *index.Index
	clusterPtrs []uint64
	blobCounts  []int

	pool  *cluster.InflatePool
	cache *arc.ARCCache[uint32, *cluster.Cluster] // nil = no caching
	group singleflight.Group

	cacheSize      int
	maxHops        int
	maxClusterSize uint64
	logger         *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Open reads the archive at path into memory and parses it.
func Open(path string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := OpenBytes(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// OpenBytes parses an archive held in memory. The Reader retains data;
// callers must not modify it afterwards.
//
// On failure no Reader is returned.
func OpenBytes(data []byte, opts ...Option) (*Reader, error) {
	r := &Reader{
		data:           data,
		cacheSize:      DefaultClusterCacheSize,
		maxHops:        DefaultMaxRedirectHops,
		maxClusterSize: DefaultMaxClusterSize,
		pool:           cluster.NewInflatePool(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.parse(); err != nil {
		return nil, err
	}

	if r.cacheSize > 0 {
		c, err := arc.NewARC[uint32, *cluster.Cluster](r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cluster cache: %w", err)
		}
		r.cache = c
	}

	r.log().Info("opened archive",
		"size", len(data),
		"entries", r.header.EntryCount,
		"articles", r.header.ArticleCount,
		"redirects", r.header.RedirectCount,
		"clusters", r.header.ClusterCount,
		"mimetypes", r.mimes.Len())
	return r, nil
}

// parse walks the archive sections in order and builds the lookup index.
func (r *Reader) parse() error {
	h, err := layout.DecodeHeader(r.data)
	if err != nil {
		return err
	}
	r.header = h
	r.log().Debug("read header", "version", fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion))

	if uint64(h.EntryCount) != uint64(h.ArticleCount)+uint64(h.RedirectCount) {
		return fmt.Errorf("%w: entry count %d != articles %d + redirects %d",
			ErrFormat, h.EntryCount, h.ArticleCount, h.RedirectCount)
	}

	if err := r.parseMimeTypes(); err != nil {
		return err
	}
	if err := r.parseDirectory(); err != nil {
		return err
	}

	ptrs, err := layout.ReadPointers(r.data, h.ClusterPtrPos, h.ClusterCount, "cluster pointer")
	if err != nil {
		return err
	}
	r.clusterPtrs = ptrs
	r.blobCounts = make([]int, len(ptrs))
	for i := range r.entries {
		e := &r.entries[i]
		if e.IsRedirect() || e.ClusterNumber >= h.ClusterCount {
			continue
		}
		r.blobCounts[e.ClusterNumber] = max(r.blobCounts[e.ClusterNumber], int(e.BlobNumber)+1)
	}
	// Blob numbers come from the directory; never trust one beyond what the
	// cluster's offset table could hold.
	for n := range r.blobCounts {
		start, end := r.clusterExtent(uint32(n)) //nolint:gosec // bounded by ClusterCount
		r.blobCounts[n] = min(r.blobCounts[n], max(cluster.MaxBlobs(r.data[start:end]), 0))
	}
	r.log().Debug("read cluster pointers", "count", len(ptrs))

	r.idx = index.Build(r.entries)
	return nil
}

func (r *Reader) parseMimeTypes() error {
	pos := r.header.MimeListPos
	if pos >= uint64(len(r.data)) {
		return fmt.Errorf("%w: mimetype list at %d past end %d", ErrFormat, pos, len(r.data))
	}
	cr := cursor.NewReader(r.data)
	_ = cr.Seek(int(pos)) //nolint:gosec // range checked above
	t, err := mimetab.Decode(cr)
	if err != nil {
		return err
	}
	r.mimes = t
	r.log().Debug("read mimetypes", "count", t.Len())
	return nil
}

func (r *Reader) parseDirectory() error {
	h := &r.header
	ptrs, err := layout.ReadPointers(r.data, h.IndexPtrPos, h.EntryCount, "index pointer")
	if err != nil {
		return err
	}

	r.entries = make([]Entry, len(ptrs))
	cr := cursor.NewReader(r.data)
	var articles uint32
	for i, p := range ptrs {
		_ = cr.Seek(int(p)) //nolint:gosec // ReadPointers bounds every pointer
		e, err := dirent.Decode(cr)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if !e.IsRedirect() {
			if int(e.MimeIndex) >= r.mimes.Len() {
				return fmt.Errorf("%w: entry %d mimetype %d of %d", ErrFormat, i, e.MimeIndex, r.mimes.Len())
			}
			articles++
		}
		e.Index = uint32(i) //nolint:gosec // bounded by EntryCount
		r.entries[i] = e
	}
	if articles != h.ArticleCount {
		return fmt.Errorf("%w: header has %d articles, directory has %d", ErrFormat, h.ArticleCount, articles)
	}
	r.log().Debug("read directory", "entries", len(r.entries))
	return nil
}

// Close releases the archive. Afterwards lookups and content reads return
// ErrClosed, listings and iterators are empty, and Header returns the zero
// value. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.data = nil
	if r.cache != nil {
		r.cache.Purge()
	}
	return nil
}

// live reports whether Close has not been called yet.
func (r *Reader) live() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Header returns the archive header.
func (r *Reader) Header() Header {
	if !r.live() {
		return Header{}
	}
	return r.header
}

// MimeTypes returns the mimetype table in index order.
func (r *Reader) MimeTypes() []string {
	if !r.live() {
		return nil
	}
	return r.mimes.Strings()
}

// MimeType returns the mimetype of a content entry, or "" for redirects.
func (r *Reader) MimeType(e Entry) string {
	if e.IsRedirect() || !r.live() {
		return ""
	}
	s, _ := r.mimes.Lookup(e.MimeIndex)
	return s
}

// EntryCount returns the number of directory entries.
func (r *Reader) EntryCount() int {
	if !r.live() {
		return 0
	}
	return len(r.entries)
}

// EntryAt returns the entry at directory index i.
func (r *Reader) EntryAt(i int) (Entry, error) {
	if !r.live() {
		return Entry{}, ErrClosed
	}
	if i < 0 || i >= len(r.entries) {
		return Entry{}, fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(r.entries))
	}
	return r.entries[i], nil
}

// Entries returns an iterator over all entries in directory order.
func (r *Reader) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if !r.live() {
			return
		}
		for _, e := range r.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// ListArticles returns the content entries in directory order.
func (r *Reader) ListArticles() []Entry {
	return r.filter(KindContent)
}

// ListRedirects returns the redirect entries in directory order.
func (r *Reader) ListRedirects() []Entry {
	return r.filter(KindRedirect)
}

func (r *Reader) filter(kind EntryKind) []Entry {
	if !r.live() {
		return nil
	}
	var out []Entry
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// EntryByPath returns the entry stored at (ns, url).
func (r *Reader) EntryByPath(ns Namespace, url string) (Entry, error) {
	if !r.live() {
		return Entry{}, ErrClosed
	}
	i, ok := r.idx.Lookup(ns, url)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ns, url)
	}
	return r.entries[i], nil
}

// EntriesWithPrefix returns an iterator over entries in ns whose URL starts
// with prefix, sorted by URL.
func (r *Reader) EntriesWithPrefix(ns Namespace, prefix string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if !r.live() {
			return
		}
		for i := range r.idx.Prefix(ns, prefix) {
			if !yield(r.entries[i]) {
				return
			}
		}
	}
}

// NamespaceCounts returns the number of entries in each namespace.
func (r *Reader) NamespaceCounts() map[Namespace]int {
	counts := make(map[Namespace]int)
	if !r.live() {
		return counts
	}
	for _, e := range r.entries {
		counts[e.Namespace]++
	}
	return counts
}

// MainPage returns the main page entry. The entry may be a redirect.
func (r *Reader) MainPage() (Entry, error) {
	if !r.live() {
		return Entry{}, ErrClosed
	}
	if !r.header.HasMainPage() {
		return Entry{}, ErrNoMainPage
	}
	i := r.header.MainPageIndex
	if uint64(i) >= uint64(len(r.entries)) {
		return Entry{}, fmt.Errorf("%w: main page index %d of %d", ErrNotFound, i, len(r.entries))
	}
	return r.entries[i], nil
}

// Resolve follows redirects from e until it reaches a content entry,
// taking at most the configured number of hops.
func (r *Reader) Resolve(e Entry) (Entry, error) {
	if !r.live() {
		return Entry{}, ErrClosed
	}
	for hops := 0; e.IsRedirect(); hops++ {
		if hops >= r.maxHops {
			return Entry{}, fmt.Errorf("%w: %s after %d hops", ErrRedirectLimit, e.Path(), hops)
		}
		target := e.RedirectIndex
		if uint64(target) >= uint64(len(r.entries)) {
			return Entry{}, fmt.Errorf("%w: %s redirects to index %d of %d",
				ErrNotFound, e.Path(), target, len(r.entries))
		}
		e = r.entries[target]
	}
	return e, nil
}

// Content returns the content of a content entry. Redirects must be
// resolved first; passing one returns ErrRedirectEntry.
func (r *Reader) Content(e Entry) ([]byte, error) {
	if e.IsRedirect() {
		return nil, fmt.Errorf("%w: %s", ErrRedirectEntry, e.Path())
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	c, err := r.cluster(e.ClusterNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path(), err)
	}
	b, err := c.Blob(int(e.BlobNumber))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path(), err)
	}
	return b, nil
}

// ContentByPath looks up (ns, url), follows redirects and returns the
// content.
func (r *Reader) ContentByPath(ns Namespace, url string) ([]byte, error) {
	e, err := r.EntryByPath(ns, url)
	if err != nil {
		return nil, err
	}
	e, err = r.Resolve(e)
	if err != nil {
		return nil, err
	}
	return r.Content(e)
}

// Metadata returns the text stored under key in the metadata namespace.
func (r *Reader) Metadata(key string) (string, error) {
	b, err := r.ContentByPath(NamespaceMetadata, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// cluster returns decoded cluster n, sharing concurrent decodes.
// The caller must hold r.mu for reading.
func (r *Reader) cluster(n uint32) (*cluster.Cluster, error) {
	if uint64(n) >= uint64(len(r.clusterPtrs)) {
		return nil, fmt.Errorf("%w: cluster %d of %d", ErrInvalidCluster, n, len(r.clusterPtrs))
	}
	if r.cache != nil {
		if c, ok := r.cache.Get(n); ok {
			return c, nil
		}
	}

	v, err, _ := r.group.Do(strconv.FormatUint(uint64(n), 10), func() (any, error) {
		if r.cache != nil {
			if c, ok := r.cache.Get(n); ok {
				return c, nil
			}
		}
		c, err := r.decodeCluster(n)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.Add(n, c)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cluster.Cluster), nil //nolint:errcheck // singleflight returns what the closure returned
}

func (r *Reader) decodeCluster(n uint32) (*cluster.Cluster, error) {
	start, end := r.clusterExtent(n)
	r.log().Debug("decoding cluster", "cluster", n, "offset", start, "size", end-start)
	c, err := cluster.Decode(r.data[start:end], r.blobCounts[n],
		cluster.WithMaxSize(r.maxClusterSize),
		cluster.WithInflatePool(r.pool))
	if err != nil {
		return nil, fmt.Errorf("cluster %d: %w", n, err)
	}
	return c, nil
}

// clusterExtent returns the byte range of cluster n: up to the next
// cluster, or the checksum block for the last one.
func (r *Reader) clusterExtent(n uint32) (start, end uint64) {
	size := uint64(len(r.data))
	start = r.clusterPtrs[n]
	end = size
	switch {
	case int(n)+1 < len(r.clusterPtrs) && r.clusterPtrs[n+1] >= start:
		end = r.clusterPtrs[n+1]
	case r.header.ChecksumPos >= start && r.header.ChecksumPos <= size:
		end = r.header.ChecksumPos
	}
	return start, end
}

// clusterSource adapts a Reader to batch.ClusterSource.
type clusterSource struct {
	r *Reader
}

func (s clusterSource) Cluster(n uint32) (*cluster.Cluster, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	if s.r.closed {
		return nil, ErrClosed
	}
	return s.r.cluster(n)
}
