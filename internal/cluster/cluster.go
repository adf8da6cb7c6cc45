// Package cluster encodes and decodes clusters: a selector byte, a blob
// offset table and a payload holding the concatenated blobs.
//
// Offsets are relative to the uncompressed payload and start at zero. When
// the payload is compressed the whole payload is one stream; it is inflated
// before any per-blob slicing.
package cluster

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/meigma/zim/internal/cursor"
	"github.com/meigma/zim/internal/sizing"
	"github.com/meigma/zim/internal/zimtype"
)

const (
	// WideOffsets is the selector bit for 8-byte offset entries.
	WideOffsets byte = 0x10

	kindMask byte = 0x0F
)

// DefaultMaxSize bounds the decoded payload of a single cluster.
const DefaultMaxSize uint64 = 256 << 20

// Cluster is a decoded cluster. It is immutable and safe for concurrent use.
type Cluster struct {
	compression zimtype.Compression
	wide        bool
	offsets     []uint64
	payload     []byte
}

// Selector splits the first byte of data into compression kind and width.
func Selector(data []byte) (zimtype.Compression, bool, error) {
	if len(data) == 0 {
		return 0, false, fmt.Errorf("%w: empty cluster", zimtype.ErrFormat)
	}
	return zimtype.Compression(data[0] & kindMask), data[0]&WideOffsets != 0, nil
}

// MaxBlobs returns the largest blob count whose offset table fits in data,
// or -1 if data cannot hold a selector and one offset.
func MaxBlobs(data []byte) int {
	_, wide, err := Selector(data)
	if err != nil {
		return -1
	}
	width := 4
	if wide {
		width = 8
	}
	return (len(data)-1)/width - 1
}

// Encoder packs blobs into cluster bytes.
type Encoder struct {
	compression zimtype.Compression
	deflater    *Deflater
}

// NewEncoder returns an Encoder for compression c. The level applies to
// zlib only and is ignored otherwise.
func NewEncoder(c zimtype.Compression, level int) (*Encoder, error) {
	if !c.Supported() {
		return nil, fmt.Errorf("%w: %s", zimtype.ErrUnsupportedCompression, c)
	}
	e := &Encoder{compression: c}
	if c == zimtype.CompressionZlib {
		d, err := NewDeflater(level)
		if err != nil {
			return nil, fmt.Errorf("zlib level %d: %w", level, err)
		}
		e.deflater = d
	}
	return e, nil
}

// Compression returns the kind this encoder writes.
func (e *Encoder) Compression() zimtype.Compression {
	return e.compression
}

// Encode writes blobs as one cluster. Wide offsets are forced when the
// payload does not fit 32-bit offsets.
func (e *Encoder) Encode(blobs [][]byte, wide bool) ([]byte, error) {
	offsets := make([]uint64, len(blobs)+1)
	for i, b := range blobs {
		next, ok := sizing.AddUint64(offsets[i], uint64(len(b)))
		if !ok {
			return nil, zimtype.ErrSizeOverflow
		}
		offsets[i+1] = next
	}
	if offsets[len(blobs)] > math.MaxUint32 {
		wide = true
	}

	var payload []byte
	if e.deflater != nil {
		p, err := e.deflater.Deflate(blobs...)
		if err != nil {
			return nil, fmt.Errorf("deflate cluster: %w", err)
		}
		payload = p
	}

	width := 4
	sel := byte(e.compression)
	if wide {
		width = 8
		sel |= WideOffsets
	}
	size := 1 + width*len(offsets)
	if payload != nil {
		size += len(payload)
	} else {
		size += int(offsets[len(blobs)]) //nolint:gosec // bounded by in-memory blobs
	}

	w := cursor.NewWriter(size)
	w.PutUint8(sel)
	for _, off := range offsets {
		if wide {
			w.PutUint64(off)
		} else {
			w.PutUint32(uint32(off)) //nolint:gosec // checked against MaxUint32 above
		}
	}
	if payload != nil {
		w.PutBytes(payload)
	} else {
		for _, b := range blobs {
			w.PutBytes(b)
		}
	}
	return w.Bytes(), nil
}

// Pack encodes blobs with compression c at the default zlib level.
func Pack(blobs [][]byte, c zimtype.Compression, wide bool) ([]byte, error) {
	e, err := NewEncoder(c, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return e.Encode(blobs, wide)
}

type decodeConfig struct {
	maxSize uint64
	pool    *InflatePool
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

// WithMaxSize bounds the decoded payload size. Zero disables the limit.
func WithMaxSize(n uint64) DecodeOption {
	return func(c *decodeConfig) {
		c.maxSize = n
	}
}

// WithInflatePool reuses zlib readers from p.
func WithInflatePool(p *InflatePool) DecodeOption {
	return func(c *decodeConfig) {
		c.pool = p
	}
}

// Decode parses cluster bytes holding blobCount blobs. The blob count is
// not stored in the cluster and must come from the caller.
func Decode(data []byte, blobCount int, opts ...DecodeOption) (*Cluster, error) {
	cfg := decodeConfig{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	kind, wide, err := Selector(data)
	if err != nil {
		return nil, err
	}
	if !kind.Supported() {
		return nil, fmt.Errorf("%w: %s (kind %d)", zimtype.ErrUnsupportedCompression, kind, kind)
	}
	if blobCount < 0 {
		return nil, fmt.Errorf("%w: negative blob count", zimtype.ErrFormat)
	}

	if blobCount > MaxBlobs(data) {
		return nil, fmt.Errorf("%w: truncated offset table for %d blobs in %d bytes",
			zimtype.ErrFormat, blobCount, len(data))
	}

	r := cursor.NewReader(data)
	_ = r.Seek(1)
	offsets := make([]uint64, blobCount+1)
	for i := range offsets {
		var off uint64
		if wide {
			off, err = r.Uint64()
		} else {
			var v uint32
			v, err = r.Uint32()
			off = uint64(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: truncated offset table", zimtype.ErrFormat)
		}
		if i == 0 && off != 0 {
			return nil, fmt.Errorf("%w: first blob offset is %d", zimtype.ErrFormat, off)
		}
		if i > 0 && off < offsets[i-1] {
			return nil, fmt.Errorf("%w: blob offsets not monotonic at %d", zimtype.ErrFormat, i)
		}
		offsets[i] = off
	}

	total := offsets[blobCount]
	if cfg.maxSize > 0 && total > cfg.maxSize {
		return nil, fmt.Errorf("%w: cluster payload %d exceeds %d", zimtype.ErrSizeOverflow, total, cfg.maxSize)
	}
	rest := data[r.Pos():]

	var payload []byte
	if kind.Compressed() {
		payload, err = inflate(rest, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		payload = rest
	}
	if uint64(len(payload)) < total {
		return nil, fmt.Errorf("%w: payload %d bytes, offsets need %d", zimtype.ErrFormat, len(payload), total)
	}

	return &Cluster{
		compression: kind,
		wide:        wide,
		offsets:     offsets,
		payload:     payload[:total],
	}, nil
}

func inflate(src []byte, cfg decodeConfig) ([]byte, error) {
	zr, release, err := cfg.pool.Get(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", zimtype.ErrDecompression, err)
	}
	defer release()

	out, err := sizing.ReadAllWithLimit(zr, cfg.maxSize, zimtype.ErrSizeOverflow)
	if err != nil {
		if errors.Is(err, zimtype.ErrSizeOverflow) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", zimtype.ErrDecompression, err)
	}
	return out, nil
}

// Compression returns the cluster's compression kind.
func (c *Cluster) Compression() zimtype.Compression {
	return c.compression
}

// Wide reports whether the cluster uses 8-byte offsets.
func (c *Cluster) Wide() bool {
	return c.wide
}

// BlobCount returns the number of blobs.
func (c *Cluster) BlobCount() int {
	return len(c.offsets) - 1
}

// Size returns the decoded payload size in bytes.
func (c *Cluster) Size() int {
	return len(c.payload)
}

// Blob returns a copy of blob b.
func (c *Cluster) Blob(b int) ([]byte, error) {
	if b < 0 || b >= c.BlobCount() {
		return nil, fmt.Errorf("%w: blob %d of %d", zimtype.ErrInvalidBlob, b, c.BlobCount())
	}
	return bytes.Clone(c.payload[c.offsets[b]:c.offsets[b+1]]), nil
}
