// Package manifest describes an archive to build as a YAML document.
//
//	compression: zlib
//	sorted: true
//	main_page: A/index.html
//	metadata:
//	  Title: My Wiki
//	dirs:
//	  - path: site
//	    namespace: C
//	articles:
//	  - namespace: A
//	    url: index.html
//	    title: Home
//	    file: pages/index.html
//	redirects:
//	  - namespace: A
//	    url: home
//	    target: A/index.html
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/meigma/zim"
)

// ErrInvalid is returned when a manifest fails validation.
var ErrInvalid = errors.New("manifest: invalid")

// Manifest is the parsed form of a build manifest.
type Manifest struct {
	// Compression is "zlib" (default) or "none".
	Compression string            `yaml:"compression"`
	Sorted      bool              `yaml:"sorted"`
	MainPage    string            `yaml:"main_page"`
	Metadata    map[string]string `yaml:"metadata"`
	Dirs        []Dir             `yaml:"dirs"`
	Articles    []Article         `yaml:"articles"`
	Redirects   []Redirect        `yaml:"redirects"`

	// baseDir resolves relative file and directory paths.
	baseDir string
}

// Dir imports every regular file under Path into Namespace.
type Dir struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Article is a single content entry. Exactly one of File and Content is set.
type Article struct {
	Namespace string `yaml:"namespace"`
	URL       string `yaml:"url"`
	Title     string `yaml:"title"`
	Mime      string `yaml:"mime"`
	File      string `yaml:"file"`
	Content   string `yaml:"content"`
}

// Redirect aliases Target, written as "<namespace>/<url>".
type Redirect struct {
	Namespace string `yaml:"namespace"`
	URL       string `yaml:"url"`
	Title     string `yaml:"title"`
	Target    string `yaml:"target"`
}

// Load reads and validates the manifest at path. Relative paths inside it
// resolve against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	m.baseDir = baseDir
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ForDir returns a manifest that imports a single directory into
// namespace ns.
func ForDir(dir, ns string) (*Manifest, error) {
	m := &Manifest{Dirs: []Dir{{Path: dir, Namespace: ns}}}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	switch m.Compression {
	case "", "zlib", "none":
	default:
		return fmt.Errorf("%w: compression %q", ErrInvalid, m.Compression)
	}
	if m.MainPage != "" {
		if _, _, err := ParsePath(m.MainPage); err != nil {
			return fmt.Errorf("main_page: %w", err)
		}
	}
	for i, d := range m.Dirs {
		if d.Path == "" {
			return fmt.Errorf("%w: dirs[%d]: path is required", ErrInvalid, i)
		}
		if _, err := ParseNamespace(d.Namespace); err != nil {
			return fmt.Errorf("dirs[%d]: %w", i, err)
		}
	}
	for i, a := range m.Articles {
		if _, err := ParseNamespace(a.Namespace); err != nil {
			return fmt.Errorf("articles[%d]: %w", i, err)
		}
		if a.URL == "" {
			return fmt.Errorf("%w: articles[%d]: url is required", ErrInvalid, i)
		}
		if (a.File == "") == (a.Content == "") {
			return fmt.Errorf("%w: articles[%d]: exactly one of file and content is required", ErrInvalid, i)
		}
	}
	for i, r := range m.Redirects {
		if _, err := ParseNamespace(r.Namespace); err != nil {
			return fmt.Errorf("redirects[%d]: %w", i, err)
		}
		if r.URL == "" {
			return fmt.Errorf("%w: redirects[%d]: url is required", ErrInvalid, i)
		}
		if _, _, err := ParsePath(r.Target); err != nil {
			return fmt.Errorf("redirects[%d]: %w", i, err)
		}
	}
	return nil
}

// ParsePath splits "<namespace>/<url>" into its parts.
func ParsePath(p string) (zim.Namespace, string, error) {
	nsPart, url, ok := strings.Cut(p, "/")
	if !ok || url == "" {
		return 0, "", fmt.Errorf("%w: path %q must look like N/url", ErrInvalid, p)
	}
	ns, err := ParseNamespace(nsPart)
	if err != nil {
		return 0, "", err
	}
	return ns, url, nil
}

// ParseNamespace parses a one-character namespace such as "A".
func ParseNamespace(s string) (zim.Namespace, error) {
	if len(s) != 1 || !zim.Namespace(s[0]).Valid() {
		return 0, fmt.Errorf("%w: namespace %q must be one printable character", ErrInvalid, s)
	}
	return zim.Namespace(s[0]), nil
}

// WriterOptions returns the writer configuration the manifest asks for.
func (m *Manifest) WriterOptions() []zim.WriterOption {
	c := zim.CompressionZlib
	if m.Compression == "none" {
		c = zim.CompressionNone
	}
	return []zim.WriterOption{
		zim.WithCompression(c),
		zim.WithSortedDirectory(m.Sorted),
	}
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.baseDir == "" {
		return p
	}
	return filepath.Join(m.baseDir, p)
}

// Apply adds everything the manifest describes to w: directories, then
// articles, metadata, redirects and finally the main page. It does not
// finalize w.
func (m *Manifest) Apply(ctx context.Context, w *zim.Writer) error {
	for _, d := range m.Dirs {
		ns, _ := ParseNamespace(d.Namespace)
		if _, err := w.AddDir(ctx, m.resolve(d.Path), ns); err != nil {
			return fmt.Errorf("add dir %s: %w", d.Path, err)
		}
	}

	for _, a := range m.Articles {
		ns, _ := ParseNamespace(a.Namespace)
		content := []byte(a.Content)
		if a.File != "" {
			data, err := os.ReadFile(m.resolve(a.File))
			if err != nil {
				return err
			}
			content = data
		}
		if _, err := w.AddArticle(ns, a.URL, a.Title, content, a.Mime); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := w.AddMetadata(k, m.Metadata[k]); err != nil {
			return err
		}
	}

	for _, r := range m.Redirects {
		ns, _ := ParseNamespace(r.Namespace)
		tns, turl, _ := ParsePath(r.Target)
		target, ok := w.IndexOf(tns, turl)
		if !ok {
			return fmt.Errorf("redirect %s/%s: %w: target %s", ns, r.URL, zim.ErrNotFound, r.Target)
		}
		if _, err := w.AddRedirect(ns, r.URL, r.Title, target); err != nil {
			return err
		}
	}

	if m.MainPage != "" {
		ns, url, _ := ParsePath(m.MainPage)
		if err := w.SetMainPageByPath(ns, url); err != nil {
			return fmt.Errorf("main_page: %w", err)
		}
	}
	return nil
}
