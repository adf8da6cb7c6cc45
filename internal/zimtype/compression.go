package zimtype

// Compression identifies the algorithm used for a cluster payload.
// The numeric values are fixed by the file format.
type Compression uint8

const (
	CompressionDefault Compression = iota
	CompressionNone
	CompressionZlib
	CompressionBzip2
	CompressionLZMA
	CompressionZstd
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionDefault:
		return "default"
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionBzip2:
		return "bzip2"
	case CompressionLZMA:
		return "lzma"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Supported reports whether this codec can encode and decode c.
func (c Compression) Supported() bool {
	switch c {
	case CompressionDefault, CompressionNone, CompressionZlib:
		return true
	default:
		return false
	}
}

// Compressed reports whether c stores its payload as a compressed stream.
func (c Compression) Compressed() bool {
	return c != CompressionDefault && c != CompressionNone
}
