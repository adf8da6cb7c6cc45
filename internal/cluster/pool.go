package cluster

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// InflatePool manages reusable zlib readers to reduce allocation overhead.
type InflatePool struct {
	pool sync.Pool
}

// NewInflatePool creates an empty pool.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// Get returns a zlib reader positioned at the start of r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *InflatePool) Get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	}

	if v := p.pool.Get(); v != nil {
		zr := v.(io.ReadCloser) //nolint:errcheck // pool only holds zlib readers
		if err := zr.(zlib.Resetter).Reset(r, nil); err != nil {
			// A reader that failed to reset holds a sticky error; let it go.
			return nil, nil, err
		}
		return zr, func() { p.pool.Put(zr) }, nil
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.pool.Put(zr) }, nil
}

// Deflater compresses cluster payloads, reusing one zlib writer.
// A Deflater is not safe for concurrent use.
type Deflater struct {
	level int
	buf   bytes.Buffer
	zw    *zlib.Writer
}

// NewDeflater returns a Deflater at the given zlib level.
func NewDeflater(level int) (*Deflater, error) {
	d := &Deflater{level: level}
	zw, err := zlib.NewWriterLevel(&d.buf, level)
	if err != nil {
		return nil, err
	}
	d.zw = zw
	return d, nil
}

// Level returns the configured compression level.
func (d *Deflater) Level() int {
	return d.level
}

// Deflate compresses the concatenation of parts as one zlib stream.
// The returned slice is owned by the caller.
func (d *Deflater) Deflate(parts ...[]byte) ([]byte, error) {
	d.buf.Reset()
	d.zw.Reset(&d.buf)
	for _, p := range parts {
		if _, err := d.zw.Write(p); err != nil {
			return nil, err
		}
	}
	if err := d.zw.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(d.buf.Bytes()), nil
}
