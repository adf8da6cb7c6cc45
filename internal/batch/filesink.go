package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// tempPrefix marks in-progress files so they never collide with entry URLs
// that survive fs.ValidPath.
const tempPrefix = ".zim-"

// FileSink writes each entry to <dest>/<namespace>/<url>.
//
// Content goes to a hidden temporary file beside its destination and is
// renamed into place on Commit. All file operations are confined to dest
// through an os.Root, so URLs cannot escape it even via symlinks planted in
// the destination tree.
type FileSink struct {
	dest      string
	overwrite bool

	openOnce sync.Once
	root     *os.Root
	openErr  error
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite replaces files that already exist. By default they are
// left alone and the entry counts as skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// NewFileSink returns a sink rooted at dest. dest is created on first use.
func NewFileSink(dest string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{dest: dest}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileSink) openRoot() (*os.Root, error) {
	s.openOnce.Do(func() {
		if err := os.MkdirAll(s.dest, 0o755); err != nil {
			s.openErr = err
			return
		}
		s.root, s.openErr = os.OpenRoot(s.dest)
	})
	return s.root, s.openErr
}

// Close releases the destination root. It is safe to call more than once.
func (s *FileSink) Close() error {
	s.openOnce.Do(func() { s.openErr = fs.ErrClosed })
	if s.root == nil {
		return nil
	}
	err := s.root.Close()
	s.root = nil
	s.openErr = fs.ErrClosed
	return err
}

// ShouldProcess reports whether entry's file still needs writing. Invalid
// paths are let through so Writer can reject them with an error.
func (s *FileSink) ShouldProcess(entry *Entry) bool {
	name := entry.Path()
	if s.overwrite || !fs.ValidPath(name) {
		return true
	}
	root, err := s.openRoot()
	if err != nil {
		return true
	}
	_, err = root.Lstat(filepath.FromSlash(name))
	return errors.Is(err, fs.ErrNotExist)
}

// Writer returns a Committer backed by a temporary file next to the
// entry's destination.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	name := entry.Path()
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "extract", Path: name, Err: fs.ErrInvalid}
	}
	root, err := s.openRoot()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.dest, err)
	}

	target := filepath.FromSlash(name)
	dir := filepath.Dir(target)
	if err := root.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir for %s: %w", name, err)
	}

	f, tmp, err := createTemp(root, dir)
	if err != nil {
		return nil, fmt.Errorf("temp file for %s: %w", name, err)
	}
	return &pendingFile{root: root, f: f, tmp: tmp, target: target}, nil
}

// pendingFile is an entry being written. Exactly one of Commit and Discard
// is called.
type pendingFile struct {
	root   *os.Root
	f      *os.File
	tmp    string
	target string
}

func (p *pendingFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *pendingFile) Commit() error {
	if err := p.f.Close(); err != nil {
		return errors.Join(fmt.Errorf("close %s: %w", p.target, err), p.root.Remove(p.tmp))
	}
	if err := p.root.Rename(p.tmp, p.target); err != nil {
		return errors.Join(fmt.Errorf("rename to %s: %w", p.target, err), p.root.Remove(p.tmp))
	}
	return nil
}

func (p *pendingFile) Discard() error {
	_ = p.f.Close() //nolint:errcheck // the file is removed below
	return p.root.Remove(p.tmp)
}

func createTemp(root *os.Root, dir string) (*os.File, string, error) {
	var suffix [8]byte
	for range 10 {
		if _, err := rand.Read(suffix[:]); err != nil {
			return nil, "", err
		}
		name := filepath.Join(dir, tempPrefix+hex.EncodeToString(suffix[:]))
		f, err := root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("no unused temporary name")
}
