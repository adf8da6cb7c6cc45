package zim

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
)

// FS returns a read-only view of namespace ns.
//
// Entry URLs become slash-separated file names and directories are
// synthesized from them; the archive does not store directories. Redirects
// read as their target's content. Entries whose URL is not a valid fs path
// are not reachable through the view.
func (r *Reader) FS(ns Namespace) fs.FS {
	return &namespaceFS{r: r, ns: ns}
}

type namespaceFS struct {
	r  *Reader
	ns Namespace
}

var (
	_ fs.StatFS     = (*namespaceFS)(nil)
	_ fs.ReadFileFS = (*namespaceFS)(nil)
	_ fs.ReadDirFS  = (*namespaceFS)(nil)
)

func (f *namespaceFS) lookup(name string) (Entry, bool) {
	if name == "." {
		return Entry{}, false
	}
	e, err := f.r.EntryByPath(f.ns, name)
	return e, err == nil
}

func (f *namespaceFS) content(e Entry) ([]byte, error) {
	e, err := f.r.Resolve(e)
	if err != nil {
		return nil, err
	}
	return f.r.Content(e)
}

// Open implements fs.FS.
func (f *namespaceFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := f.lookup(name); ok {
		data, err := f.content(e)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &openFile{
			Reader: bytes.NewReader(data),
			info:   newFileInfo(baseName(name), int64(len(data)), e),
		}, nil
	}
	if f.isDir(name) {
		return &openDir{fsys: f, name: name}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS. Sizing a file decodes its cluster.
func (f *namespaceFS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := f.lookup(name); ok {
		data, err := f.content(e)
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
		return newFileInfo(baseName(name), int64(len(data)), e), nil
	}
	if f.isDir(name) {
		return dirInfo{name: baseName(name)}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
func (f *namespaceFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	e, ok := f.lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	data, err := f.content(e)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (f *namespaceFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	entries := slices.Collect(f.children(name))
	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

func (f *namespaceFS) isDir(name string) bool {
	if name == "." {
		return true
	}
	for range f.children(name) {
		return true
	}
	return false
}

// children yields the immediate children of directory name in URL order.
// A name shared by a file and a directory is reported once.
func (f *namespaceFS) children(name string) iter.Seq[fs.DirEntry] {
	prefix := childPrefix(name)
	return func(yield func(fs.DirEntry) bool) {
		seen := make(map[string]struct{})
		for e := range f.r.EntriesWithPrefix(f.ns, prefix) {
			if e.URL == "." || !fs.ValidPath(e.URL) {
				continue
			}
			child, sub := splitChild(e.URL, prefix)
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}

			var de fs.DirEntry
			if sub {
				de = fs.FileInfoToDirEntry(dirInfo{name: child})
			} else {
				de = &fileDirEntry{fsys: f, entry: e, name: child}
			}
			if !yield(de) {
				return
			}
		}
	}
}

type fileInfo struct {
	name  string
	size  int64
	entry Entry
}

func newFileInfo(name string, size int64, e Entry) fileInfo {
	return fileInfo{name: name, size: size, entry: e}
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }

// Sys returns the directory Entry.
func (fi fileInfo) Sys() any { return fi.entry }

type dirInfo struct {
	name string
}

func (di dirInfo) Name() string       { return di.name }
func (di dirInfo) Size() int64        { return 0 }
func (di dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di dirInfo) ModTime() time.Time { return time.Time{} }
func (di dirInfo) IsDir() bool        { return true }
func (di dirInfo) Sys() any           { return nil }

// fileDirEntry defers decoding the entry's content until Info is called.
type fileDirEntry struct {
	fsys  *namespaceFS
	entry Entry
	name  string

	once sync.Once
	info fs.FileInfo
	err  error
}

func (d *fileDirEntry) Name() string      { return d.name }
func (d *fileDirEntry) IsDir() bool       { return false }
func (d *fileDirEntry) Type() fs.FileMode { return 0 }

func (d *fileDirEntry) Info() (fs.FileInfo, error) {
	d.once.Do(func() {
		data, err := d.fsys.content(d.entry)
		if err != nil {
			d.err = err
			return
		}
		d.info = newFileInfo(d.name, int64(len(data)), d.entry)
	})
	return d.info, d.err
}

type openFile struct {
	*bytes.Reader
	info fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir implements fs.ReadDirFile for synthesized directories.
type openDir struct {
	fsys *namespaceFS
	name string
	next func() (fs.DirEntry, bool)
	stop func()
}

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return dirInfo{name: baseName(d.name)}, nil
}

func (d *openDir) Close() error {
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.next == nil {
		d.next, d.stop = iter.Pull(d.fsys.children(d.name))
	}

	var entries []fs.DirEntry
	for n <= 0 || len(entries) < n {
		de, ok := d.next()
		if !ok {
			break
		}
		entries = append(entries, de)
	}
	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}
	if entries == nil {
		entries = []fs.DirEntry{}
	}
	return entries, nil
}

// baseName returns the final element of a valid fs path; "." stays ".".
func baseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// childPrefix is the URL prefix shared by everything inside directory name.
func childPrefix(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// splitChild returns the element of url directly below prefix and whether
// url continues past it, making that element a directory.
func splitChild(url, prefix string) (string, bool) {
	child, _, nested := strings.Cut(url[len(prefix):], "/")
	return child, nested
}
