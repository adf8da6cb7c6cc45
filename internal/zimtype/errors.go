package zimtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations.
var (
	// ErrFormat is returned when archive bytes violate the layout.
	ErrFormat = errors.New("zim: invalid archive format")

	// ErrUnsupportedCompression is returned for cluster compression kinds
	// this codec does not implement.
	ErrUnsupportedCompression = errors.New("zim: unsupported compression")

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = errors.New("zim: decompression failed")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("zim: size overflow")

	// ErrLookup is the parent of every lookup failure.
	ErrLookup = errors.New("zim: lookup failed")
)

// Lookup failures. Each wraps ErrLookup.
var (
	ErrNotFound       = fmt.Errorf("%w: entry not found", ErrLookup)
	ErrInvalidBlob    = fmt.Errorf("%w: invalid blob number", ErrLookup)
	ErrInvalidCluster = fmt.Errorf("%w: invalid cluster number", ErrLookup)
	ErrNoMainPage     = fmt.Errorf("%w: no main page", ErrLookup)
	ErrRedirectLimit  = fmt.Errorf("%w: redirect hop limit exceeded", ErrLookup)
	ErrRedirectEntry  = fmt.Errorf("%w: entry is a redirect", ErrLookup)
)
