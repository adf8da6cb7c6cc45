package zim

import (
	"errors"

	"github.com/meigma/zim/internal/layout"
	"github.com/meigma/zim/internal/write"
	"github.com/meigma/zim/internal/zimtype"
)

// Re-export types from internal/zimtype for public API.
type (
	// Entry is a directory entry: either content or a redirect.
	Entry = zimtype.Entry

	// EntryKind discriminates content entries from redirects.
	EntryKind = zimtype.EntryKind

	// Header is the fixed-size record at the start of every archive.
	Header = zimtype.Header

	// Namespace partitions the URL space of an archive.
	Namespace = zimtype.Namespace

	// Compression identifies the algorithm used for a cluster payload.
	Compression = zimtype.Compression

	// SkipCompressionFunc returns true when an article should be stored
	// in an uncompressed cluster.
	SkipCompressionFunc = write.SkipCompressionFunc
)

// Re-export entry kinds.
const (
	KindContent  = zimtype.KindContent
	KindRedirect = zimtype.KindRedirect
)

// Re-export well-known namespaces.
const (
	NamespaceContent     = zimtype.NamespaceContent
	NamespaceArticle     = zimtype.NamespaceArticle
	NamespaceImage       = zimtype.NamespaceImage
	NamespaceMetadata    = zimtype.NamespaceMetadata
	NamespaceRawData     = zimtype.NamespaceRawData
	NamespaceStyle       = zimtype.NamespaceStyle
	NamespaceScript      = zimtype.NamespaceScript
	NamespaceFont        = zimtype.NamespaceFont
	NamespaceTranslation = zimtype.NamespaceTranslation
	NamespaceVideo       = zimtype.NamespaceVideo
	NamespaceAudio       = zimtype.NamespaceAudio
)

// Re-export compression constants.
const (
	CompressionDefault = zimtype.CompressionDefault
	CompressionNone    = zimtype.CompressionNone
	CompressionZlib    = zimtype.CompressionZlib
	CompressionBzip2   = zimtype.CompressionBzip2
	CompressionLZMA    = zimtype.CompressionLZMA
	CompressionZstd    = zimtype.CompressionZstd
)

// Format constants.
const (
	Magic        = zimtype.Magic
	MajorVersion = zimtype.MajorVersion
	MinorVersion = zimtype.MinorVersion
	HeaderSize   = layout.HeaderSize
	NoMainPage   = zimtype.NoMainPage

	// RedirectMimeIndex is the mimetype field value of redirect entries.
	RedirectMimeIndex = zimtype.RedirectMimeIndex
)

// NewContentEntry and NewRedirectEntry construct directory entries.
var (
	NewContentEntry  = zimtype.NewContentEntry
	NewRedirectEntry = zimtype.NewRedirectEntry
)

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// articles and known already-compressed extensions.
var DefaultSkipCompression = write.DefaultSkipCompression

// Sentinel errors re-exported from internal/zimtype.
var (
	// ErrFormat is returned when archive bytes violate the layout.
	ErrFormat = zimtype.ErrFormat

	// ErrUnsupportedCompression is returned for cluster compression kinds
	// this package does not implement.
	ErrUnsupportedCompression = zimtype.ErrUnsupportedCompression

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = zimtype.ErrDecompression

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = zimtype.ErrSizeOverflow

	// ErrLookup is the parent of every lookup failure below.
	ErrLookup = zimtype.ErrLookup

	ErrNotFound       = zimtype.ErrNotFound
	ErrInvalidBlob    = zimtype.ErrInvalidBlob
	ErrInvalidCluster = zimtype.ErrInvalidCluster
	ErrNoMainPage     = zimtype.ErrNoMainPage
	ErrRedirectLimit  = zimtype.ErrRedirectLimit
	ErrRedirectEntry  = zimtype.ErrRedirectEntry
)

// Sentinel errors specific to the zim package.
var (
	// ErrClosed is returned when a closed Reader or Writer is used.
	ErrClosed = errors.New("zim: archive closed")

	// ErrFinalized is returned when a finalized Writer is modified.
	ErrFinalized = errors.New("zim: writer already finalized")

	// ErrDuplicateEntry is returned when a (namespace, url) pair is added twice.
	ErrDuplicateEntry = errors.New("zim: duplicate entry")

	// ErrInvalidPath is returned for an invalid namespace, url or title.
	ErrInvalidPath = errors.New("zim: invalid entry path")
)
