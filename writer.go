package zim

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meigma/zim/internal/cluster"
	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/dirent"
	"github.com/meigma/zim/internal/layout"
	"github.com/meigma/zim/internal/mimetab"
	"github.com/meigma/zim/internal/platform"
	"github.com/meigma/zim/internal/sizing"
	"github.com/meigma/zim/internal/write"
)

type entryKey struct {
	ns  Namespace
	url string
}

// Writer accumulates entries and clusters in memory and serializes the
// whole archive on Finalize.
//
// Each article is packed into its own cluster. A Writer is not safe for
// concurrent use.
type Writer struct {
	cfg    writerConfig
	out    io.Writer
	file   *os.File // set by Create; closed by Finalize or Close
	closed bool

	mimes    *mimetab.Table
	entries  []Entry
	keys     map[entryKey]int
	clusters [][]byte
	mainPage int // -1 = none

	encoder *cluster.Encoder
	raw     *cluster.Encoder

	finalized bool
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// Create creates or truncates the file at path and returns a Writer that
// writes the archive there on Finalize.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts...)
	if err != nil {
		_ = f.Close() //nolint:errcheck // returning the option error
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter returns a Writer that writes the archive to out on Finalize.
func NewWriter(out io.Writer, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{
		compression: CompressionZlib,
		level:       DefaultCompressionLevel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	enc, err := cluster.NewEncoder(cfg.compression, cfg.level)
	if err != nil {
		return nil, err
	}
	raw, err := cluster.NewEncoder(CompressionNone, 0)
	if err != nil {
		return nil, err
	}

	return &Writer{
		cfg:      cfg,
		out:      out,
		mimes:    mimetab.New(),
		keys:     make(map[entryKey]int),
		mainPage: -1,
		encoder:  enc,
		raw:      raw,
	}, nil
}

func (w *Writer) checkBuilding() error {
	if w.finalized {
		return ErrFinalized
	}
	if w.closed {
		return ErrClosed
	}
	return nil
}

// checkNew validates a new entry's path and title.
func (w *Writer) checkNew(ns Namespace, url, title string) error {
	if err := w.checkBuilding(); err != nil {
		return err
	}
	if !ns.Valid() {
		return fmt.Errorf("%w: namespace %q", ErrInvalidPath, byte(ns))
	}
	if url == "" || strings.IndexByte(url, 0) >= 0 || strings.IndexByte(title, 0) >= 0 {
		return fmt.Errorf("%w: %s/%q", ErrInvalidPath, ns, url)
	}
	if _, ok := w.keys[entryKey{ns, url}]; ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateEntry, ns, url)
	}
	if len(w.entries) >= math.MaxUint32 {
		return fmt.Errorf("%w: too many entries", ErrSizeOverflow)
	}
	return nil
}

func (w *Writer) append(e Entry) int {
	i := len(w.entries)
	e.Index = uint32(i) //nolint:gosec // bounded in checkNew
	w.entries = append(w.entries, e)
	w.keys[entryKey{e.Namespace, e.URL}] = i
	return i
}

// AddArticle stores content in a new cluster and appends a content entry.
// An empty mime is detected from url and content. It returns the entry's
// directory index.
func (w *Writer) AddArticle(ns Namespace, url, title string, content []byte, mime string) (int, error) {
	if err := w.checkNew(ns, url, title); err != nil {
		return 0, err
	}
	if mime == "" {
		mime = DetectMimeType(url, content)
	}

	enc := w.encoder
	if w.cfg.compression.Compressed() && write.ShouldSkip(url, len(content), w.cfg.skipCompression) {
		enc = w.raw
	}
	packed, err := enc.Encode([][]byte{content}, w.cfg.wideOffsets)
	if err != nil {
		return 0, fmt.Errorf("%s/%s: %w", ns, url, err)
	}
	if len(w.clusters) >= math.MaxUint32 {
		return 0, fmt.Errorf("%w: too many clusters", ErrSizeOverflow)
	}

	mimeIndex, err := w.mimes.Intern(mime)
	if err != nil {
		return 0, fmt.Errorf("%s/%s: mimetype %q: %w", ns, url, mime, err)
	}

	clusterNumber := uint32(len(w.clusters)) //nolint:gosec // checked above
	w.clusters = append(w.clusters, packed)
	i := w.append(NewContentEntry(ns, url, title, mimeIndex, clusterNumber, 0))
	w.log().Debug("added article", "path", ns.String()+"/"+url, "size", len(content),
		"stored", len(packed), "compression", enc.Compression().String())
	return i, nil
}

// AddRedirect appends a redirect entry aliasing the entry at target. The
// target is range-checked by Finalize.
func (w *Writer) AddRedirect(ns Namespace, url, title string, target int) (int, error) {
	if err := w.checkNew(ns, url, title); err != nil {
		return 0, err
	}
	if target < 0 || target > math.MaxUint32 {
		return 0, fmt.Errorf("%w: redirect %s/%s to index %d", ErrFormat, ns, url, target)
	}
	return w.append(NewRedirectEntry(ns, url, title, uint32(target))), nil
}

// AddMetadata stores value as a text/plain article under key in the
// metadata namespace.
func (w *Writer) AddMetadata(key, value string) (int, error) {
	return w.AddArticle(NamespaceMetadata, key, "", []byte(value), MimeTypePlain)
}

// IndexOf returns the directory index of the entry at (ns, url).
func (w *Writer) IndexOf(ns Namespace, url string) (int, bool) {
	i, ok := w.keys[entryKey{ns, url}]
	return i, ok
}

// Len returns the number of entries added so far.
func (w *Writer) Len() int {
	return len(w.entries)
}

// SetMainPage marks the entry at index as the main page. The index is
// range-checked by Finalize.
func (w *Writer) SetMainPage(index int) error {
	if err := w.checkBuilding(); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("%w: main page index %d", ErrFormat, index)
	}
	w.mainPage = index
	return nil
}

// SetMainPageByPath marks the entry at (ns, url) as the main page.
func (w *Writer) SetMainPageByPath(ns Namespace, url string) error {
	i, ok := w.IndexOf(ns, url)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, ns, url)
	}
	return w.SetMainPage(i)
}

// AddDir adds one article per regular file under dir, in lexical order,
// using the slash-separated relative path as URL. Symbolic links are
// skipped. It returns the number of articles added.
func (w *Writer) AddDir(ctx context.Context, dir string, ns Namespace) (int, error) {
	if err := w.checkBuilding(); err != nil {
		return 0, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	w.log().Info("adding directory", "dir", dir, "namespace", ns.String())
	added := 0
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			w.log().Debug("skipped non-regular file", "path", path)
			return nil
		}

		content, err := readFileNoFollow(root, filepath.FromSlash(path))
		if errors.Is(err, platform.ErrSymlink) {
			w.log().Debug("skipped symlink", "path", path)
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.AddArticle(ns, path, "", content, DetectMimeType(path, content)); err != nil {
			return err
		}
		added++
		return nil
	})
	return added, err
}

func readFileNoFollow(root *os.Root, name string) ([]byte, error) {
	f, err := platform.OpenFileNoFollow(root, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", name)
	}
	return io.ReadAll(f)
}

// Finalize validates references, lays out and serializes the archive,
// and writes it to the destination. A file destination is closed.
//
// Validation and layout errors leave the Writer unchanged so the caller
// can fix the problem and retry. Write and close errors close the Writer.
func (w *Writer) Finalize() error {
	if err := w.checkBuilding(); err != nil {
		return err
	}

	entries, mainPage, err := w.directory()
	if err != nil {
		return err
	}
	image, err := w.serialize(entries, mainPage)
	if err != nil {
		return err
	}

	// Once output has started the destination state is unknown, so any
	// failure from here on closes the Writer instead of allowing a retry.
	if _, err := w.out.Write(image); err != nil {
		return errors.Join(fmt.Errorf("write archive: %w", err), w.Close())
	}
	if w.file != nil {
		w.closed = true
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
	}
	w.finalized = true

	w.log().Info("finalized archive",
		"size", len(image),
		"entries", len(entries),
		"clusters", len(w.clusters),
		"mimetypes", w.mimes.Len())
	return nil
}

// directory validates references and returns the entries in storage
// order together with the main page index.
func (w *Writer) directory() ([]Entry, uint32, error) {
	n := len(w.entries)
	for i := range w.entries {
		e := &w.entries[i]
		if e.IsRedirect() && int(e.RedirectIndex) >= n {
			return nil, 0, fmt.Errorf("%w: %s redirects to index %d of %d", ErrFormat, e.Path(), e.RedirectIndex, n)
		}
	}
	if w.mainPage >= n {
		return nil, 0, fmt.Errorf("%w: main page index %d of %d", ErrFormat, w.mainPage, n)
	}

	entries := slices.Clone(w.entries)
	mainPage := NoMainPage
	if w.mainPage >= 0 {
		mainPage = uint32(w.mainPage) //nolint:gosec // bounded by entry count
	}
	if !w.cfg.sorted {
		return entries, mainPage, nil
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
	remap := make([]uint32, n)
	for i := range entries {
		remap[entries[i].Index] = uint32(i) //nolint:gosec // bounded by entry count
	}
	for i := range entries {
		e := &entries[i]
		e.Index = uint32(i) //nolint:gosec // bounded by entry count
		if e.IsRedirect() {
			e.RedirectIndex = remap[e.RedirectIndex]
		}
	}
	if mainPage != NoMainPage {
		mainPage = remap[mainPage]
	}
	return entries, mainPage, nil
}

// serialize plans section offsets and writes the archive image, filling
// the header last.
func (w *Writer) serialize(entries []Entry, mainPage uint32) ([]byte, error) {
	entrySizes := make([]int, len(entries))
	var articles int
	for i := range entries {
		n, err := dirent.Size(&entries[i])
		if err != nil {
			return nil, err
		}
		entrySizes[i] = n
		if !entries[i].IsRedirect() {
			articles++
		}
	}
	clusterSizes := make([]int, len(w.clusters))
	for i, c := range w.clusters {
		clusterSizes[i] = len(c)
	}

	plan, err := layout.NewPlan(w.mimes.EncodedSize(), entrySizes, clusterSizes)
	if err != nil {
		return nil, err
	}
	size, err := sizing.ToInt(plan.Size, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	w.log().Debug("planned layout", "size", plan.Size, "directory", plan.DirectoryPos,
		"index_pointers", plan.IndexPtrPos, "cluster_pointers", plan.ClusterPtrPos, "checksum", plan.ChecksumPos)

	cw := cursor.NewWriter(layout.HeaderSize)
	if err := cw.Seek(layout.HeaderSize); err != nil {
		return nil, err
	}
	if err := w.mimes.Encode(cw); err != nil {
		return nil, err
	}
	for i := range entries {
		if err := dirent.Encode(cw, &entries[i]); err != nil {
			return nil, err
		}
	}
	for _, p := range plan.EntryPos {
		cw.PutUint64(p)
	}
	for _, p := range plan.ClusterPos {
		cw.PutUint64(p)
	}
	for _, c := range w.clusters {
		cw.PutBytes(c)
	}
	cw.PutBytes(make([]byte, layout.ChecksumSize))
	if cw.Len() != size {
		return nil, fmt.Errorf("%w: wrote %d bytes, planned %d", ErrFormat, cw.Len(), size)
	}

	entryCount, err := sizing.ToUint32(len(entries), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	articleCount, err := sizing.ToUint32(articles, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	clusterCount, err := sizing.ToUint32(len(w.clusters), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	h := Header{
		MagicNumber:   Magic,
		MajorVersion:  MajorVersion,
		MinorVersion:  MinorVersion,
		EntryCount:    entryCount,
		ArticleCount:  articleCount,
		ClusterCount:  clusterCount,
		RedirectCount: entryCount - articleCount,
		MimeListPos:   plan.MimeListPos,
		ClusterPtrPos: plan.ClusterPtrPos,
		MainPageIndex: mainPage,
		ChecksumPos:   plan.ChecksumPos,
		IndexPtrPos:   plan.IndexPtrPos,
	}
	_ = cw.Seek(0)
	layout.EncodeHeader(cw, &h)
	return cw.Bytes(), nil
}

// Close releases the destination file without writing an archive if
// Finalize has not run. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
