package zim

import (
	"log/slog"

	"github.com/klauspost/compress/zlib"
)

// DefaultCompressionLevel is the zlib level used unless
// WithCompressionLevel says otherwise.
const DefaultCompressionLevel = zlib.DefaultCompression

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	compression     Compression
	level           int
	wideOffsets     bool
	sorted          bool
	skipCompression []SkipCompressionFunc
	logger          *slog.Logger
}

// WithCompression sets the cluster compression (default: zlib).
// Only CompressionNone, CompressionDefault and CompressionZlib are
// supported; others make NewWriter fail with ErrUnsupportedCompression.
func WithCompression(c Compression) WriterOption {
	return func(cfg *writerConfig) {
		cfg.compression = c
	}
}

// WithCompressionLevel sets the zlib level, from zlib.HuffmanOnly (-2) to
// zlib.BestCompression (9).
func WithCompressionLevel(level int) WriterOption {
	return func(cfg *writerConfig) {
		cfg.level = level
	}
}

// WithWideOffsets forces 8-byte blob offsets in every cluster. Wide
// offsets are always used when a cluster exceeds 4 GiB.
func WithWideOffsets(enabled bool) WriterOption {
	return func(cfg *writerConfig) {
		cfg.wideOffsets = enabled
	}
}

// WithSortedDirectory stores entries sorted by (namespace, url) instead
// of insertion order. Redirect targets and the main page are remapped.
func WithSortedDirectory(enabled bool) WriterOption {
	return func(cfg *writerConfig) {
		cfg.sorted = enabled
	}
}

// WithSkipCompression adds predicates that store matching articles in
// uncompressed clusters. If any predicate returns true, compression is
// skipped.
func WithSkipCompression(fns ...SkipCompressionFunc) WriterOption {
	return func(cfg *writerConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// WithWriterLogger sets the logger for archive creation.
// If not set, logging is disabled.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(cfg *writerConfig) {
		cfg.logger = logger
	}
}
