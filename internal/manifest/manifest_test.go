package manifest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zim"
)

const sample = `
compression: none
sorted: true
main_page: A/index.html
metadata:
  Title: Test Wiki
  Language: eng
dirs:
  - path: site
    namespace: C
articles:
  - namespace: A
    url: index.html
    title: Home
    file: pages/index.html
  - namespace: A
    url: about
    content: about us
    mime: text/plain
redirects:
  - namespace: A
    url: home
    target: A/index.html
`

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"zim.yaml":         sample,
		"pages/index.html": "<h1>home</h1>",
		"site/app.js":      "console.log(1)",
	} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func TestLoadAndApply(t *testing.T) {
	t.Parallel()

	dir := writeTree(t)
	m, err := Load(filepath.Join(dir, "zim.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "none", m.Compression)
	assert.True(t, m.Sorted)
	assert.Len(t, m.Articles, 2)

	var buf bytes.Buffer
	w, err := zim.NewWriter(&buf, m.WriterOptions()...)
	require.NoError(t, err)
	require.NoError(t, m.Apply(context.Background(), w))
	require.NoError(t, w.Finalize())

	r, err := zim.OpenBytes(buf.Bytes())
	require.NoError(t, err)
	defer r.Close()

	main, err := r.MainPage()
	require.NoError(t, err)
	assert.Equal(t, "index.html", main.URL)
	assert.Equal(t, "Home", main.Title)

	got, err := r.ContentByPath(zim.NamespaceArticle, "home")
	require.NoError(t, err)
	assert.Equal(t, "<h1>home</h1>", string(got))

	got, err = r.ContentByPath(zim.NamespaceContent, "app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(got))

	title, err := r.Metadata("Title")
	require.NoError(t, err)
	assert.Equal(t, "Test Wiki", title)

	e, err := r.EntryByPath(zim.NamespaceArticle, "about")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", r.MimeType(e))
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "colour: blue\n"},
		{"bad compression", "compression: zstd\n"},
		{"bad main page", "main_page: index.html\n"},
		{"long namespace", "articles:\n  - namespace: AB\n    url: x\n    content: y\n"},
		{"missing url", "articles:\n  - namespace: A\n    content: y\n"},
		{"file and content", "articles:\n  - namespace: A\n    url: x\n    content: y\n    file: z\n"},
		{"neither file nor content", "articles:\n  - namespace: A\n    url: x\n"},
		{"bad redirect target", "redirects:\n  - namespace: A\n    url: x\n    target: nope\n"},
		{"dir without path", "dirs:\n  - namespace: C\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml), "")
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApplyMissingRedirectTarget(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte("redirects:\n  - namespace: A\n    url: x\n    target: A/missing\n"), "")
	require.NoError(t, err)

	w, err := zim.NewWriter(&bytes.Buffer{})
	require.NoError(t, err)
	require.ErrorIs(t, m.Apply(context.Background(), w), zim.ErrNotFound)
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	ns, url, err := ParsePath("A/wiki/Go")
	require.NoError(t, err)
	assert.Equal(t, zim.NamespaceArticle, ns)
	assert.Equal(t, "wiki/Go", url)

	for _, bad := range []string{"", "A", "A/", "/x", "AB/x", " /x"} {
		_, _, err := ParsePath(bad)
		require.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	m, err := Parse(nil, "")
	require.NoError(t, err)
	assert.Empty(t, m.Articles)
}

func TestForDir(t *testing.T) {
	t.Parallel()

	m, err := ForDir("site", "C")
	require.NoError(t, err)
	require.Len(t, m.Dirs, 1)
	assert.Equal(t, "site", m.Dirs[0].Path)

	_, err = ForDir("site", "CC")
	require.ErrorIs(t, err, ErrInvalid)
	_, err = ForDir("", "C")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestParseNamespace(t *testing.T) {
	t.Parallel()

	ns, err := ParseNamespace("A")
	require.NoError(t, err)
	assert.Equal(t, zim.NamespaceArticle, ns)

	for _, bad := range []string{"", " ", "AB", "\x7f"} {
		_, err := ParseNamespace(bad)
		require.ErrorIs(t, err, ErrInvalid, "%q", bad)
	}
}
