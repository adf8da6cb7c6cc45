// Package write holds helpers shared by archive writers.
package write

import (
	"path"
	"strings"
)

// SkipCompressionFunc returns true when an article should be stored in an
// uncompressed cluster. It is called once per article and should be
// inexpensive.
type SkipCompressionFunc func(url string, size int) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips articles
// smaller than minSize and known already-compressed extensions.
func DefaultSkipCompression(minSize int) SkipCompressionFunc {
	return func(url string, size int) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		_, ok := defaultSkipCompressionExts[strings.ToLower(path.Ext(url))]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given article.
func ShouldSkip(url string, size int, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(url, size) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".mkv":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".pdf":   {},
	".png":   {},
	".tgz":   {},
	".webm":  {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
