// Package sizing converts and adds archive sizes without silent overflow.
package sizing

import (
	"io"
	"math"
)

// ToInt narrows an on-disk size to int or returns overflowErr.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > math.MaxInt {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToUint32 narrows an in-memory count to a 32-bit header field or returns
// overflowErr.
func ToUint32(n int, overflowErr error) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(n), nil
}

// AddUint64 returns a+b and false if the sum wrapped.
func AddUint64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// InRange reports whether the n bytes at off fit in a buffer of length size.
func InRange(off, n uint64, size int) bool {
	end, ok := AddUint64(off, n)
	return ok && size >= 0 && end <= uint64(size)
}

// ReadAllWithLimit drains r, failing with overflowErr once more than limit
// bytes arrive. A zero limit reads everything.
func ReadAllWithLimit(r io.Reader, limit uint64, overflowErr error) ([]byte, error) {
	if limit == 0 {
		return io.ReadAll(r)
	}
	if limit >= math.MaxInt64 {
		return nil, overflowErr
	}
	// One extra byte distinguishes "exactly limit" from "too large".
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > limit {
		return nil, overflowErr
	}
	return data, nil
}
