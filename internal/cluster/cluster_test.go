package cluster

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zim/internal/zimtype"
)

func testBlobs() [][]byte {
	return [][]byte{
		{},
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 100),
	}
}

func TestPackRawLayout(t *testing.T) {
	t.Parallel()

	data, err := Pack([][]byte{[]byte("ab"), []byte("cde")}, zimtype.CompressionNone, false)
	require.NoError(t, err)

	want := []byte{0x01, 0, 0, 0, 0, 2, 0, 0, 0, 5, 0, 0, 0}
	want = append(want, "abcde"...)
	assert.Equal(t, want, data)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		compression zimtype.Compression
		wide        bool
	}{
		{"default", zimtype.CompressionDefault, false},
		{"none", zimtype.CompressionNone, false},
		{"zlib", zimtype.CompressionZlib, false},
		{"none wide", zimtype.CompressionNone, true},
		{"zlib wide", zimtype.CompressionZlib, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			blobs := testBlobs()
			data, err := Pack(blobs, tt.compression, tt.wide)
			require.NoError(t, err)

			kind, wide, err := Selector(data)
			require.NoError(t, err)
			assert.Equal(t, tt.compression, kind)
			assert.Equal(t, tt.wide, wide)

			c, err := Decode(data, len(blobs))
			require.NoError(t, err)
			assert.Equal(t, len(blobs), c.BlobCount())
			assert.Equal(t, 105, c.Size())

			for i, want := range blobs {
				got, err := c.Blob(i)
				require.NoError(t, err)
				assert.Len(t, got, len(want))
				assert.True(t, bytes.Equal(want, got), "blob %d", i)
			}
		})
	}
}

func TestBlobOutOfRange(t *testing.T) {
	t.Parallel()

	data, err := Pack(testBlobs(), zimtype.CompressionNone, false)
	require.NoError(t, err)
	c, err := Decode(data, 3)
	require.NoError(t, err)

	for _, b := range []int{-1, 3, 100} {
		_, err := c.Blob(b)
		require.ErrorIs(t, err, zimtype.ErrInvalidBlob)
		require.ErrorIs(t, err, zimtype.ErrLookup)
	}
}

func TestBlobIsCopy(t *testing.T) {
	t.Parallel()

	data, err := Pack([][]byte{[]byte("abc")}, zimtype.CompressionNone, false)
	require.NoError(t, err)
	c, err := Decode(data, 1)
	require.NoError(t, err)

	b, err := c.Blob(0)
	require.NoError(t, err)
	b[0] = 'z'

	again, err := c.Blob(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestZlibCompresses(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("compressible "), 1000)
	data, err := Pack([][]byte{big}, zimtype.CompressionZlib, false)
	require.NoError(t, err)
	assert.Less(t, len(data), len(big)/4)

	c, err := Decode(data, 1, WithInflatePool(NewInflatePool()))
	require.NoError(t, err)
	got, err := c.Blob(0)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestInflatePoolReuse(t *testing.T) {
	t.Parallel()

	pool := NewInflatePool()
	for i := range 5 {
		blob := bytes.Repeat([]byte{byte('a' + i)}, 50+i)
		data, err := Pack([][]byte{blob}, zimtype.CompressionZlib, false)
		require.NoError(t, err)

		c, err := Decode(data, 1, WithInflatePool(pool))
		require.NoError(t, err)
		got, err := c.Blob(0)
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	}
}

func TestUnsupportedCompression(t *testing.T) {
	t.Parallel()

	for _, kind := range []byte{3, 4, 5, 9, 3 | WideOffsets} {
		data := []byte{kind, 0, 0, 0, 0, 1, 0, 0, 0, 'a'}
		_, err := Decode(data, 1)
		require.ErrorIs(t, err, zimtype.ErrUnsupportedCompression, "kind %#x", kind)
	}

	_, err := NewEncoder(zimtype.CompressionZstd, 0)
	require.ErrorIs(t, err, zimtype.ErrUnsupportedCompression)
}

func TestDecodeFormatErrors(t *testing.T) {
	t.Parallel()

	le := func(vals ...uint32) []byte {
		out := []byte{byte(zimtype.CompressionNone)}
		for _, v := range vals {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
		return out
	}

	tests := []struct {
		name  string
		data  []byte
		count int
	}{
		{"empty", nil, 0},
		{"truncated table", le(0), 1},
		{"nonzero first offset", append(le(1, 2), 'a', 'b'), 1},
		{"not monotonic", append(le(0, 3, 2), "abc"...), 2},
		{"short payload", append(le(0, 10), 'a'), 1},
		{"negative count", le(0), -1},
		{"count beyond buffer", le(0, 0), math.MaxInt32},
		{"count beyond wide buffer", append([]byte{byte(zimtype.CompressionNone) | WideOffsets}, make([]byte, 16)...), math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.data, tt.count)
			require.ErrorIs(t, err, zimtype.ErrFormat)
		})
	}
}

func TestDecodeCorruptZlib(t *testing.T) {
	t.Parallel()

	data := []byte{byte(zimtype.CompressionZlib), 0, 0, 0, 0, 3, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef}
	_, err := Decode(data, 1)
	require.ErrorIs(t, err, zimtype.ErrDecompression)
}

func TestDecodeMaxSize(t *testing.T) {
	t.Parallel()

	blob := bytes.Repeat([]byte("a"), 64)
	for _, c := range []zimtype.Compression{zimtype.CompressionNone, zimtype.CompressionZlib} {
		data, err := Pack([][]byte{blob}, c, false)
		require.NoError(t, err)

		_, err = Decode(data, 1, WithMaxSize(32))
		require.ErrorIs(t, err, zimtype.ErrSizeOverflow, c.String())

		_, err = Decode(data, 1, WithMaxSize(0))
		require.NoError(t, err, c.String())
	}
}

func TestEncoderReuse(t *testing.T) {
	t.Parallel()

	e, err := NewEncoder(zimtype.CompressionZlib, 9)
	require.NoError(t, err)
	assert.Equal(t, zimtype.CompressionZlib, e.Compression())

	for _, s := range []string{"first", "second blob", ""} {
		data, err := e.Encode([][]byte{[]byte(s)}, false)
		require.NoError(t, err)
		c, err := Decode(data, 1)
		require.NoError(t, err)
		got, err := c.Blob(0)
		require.NoError(t, err)
		assert.Equal(t, s, string(got))
	}

	_, err = NewEncoder(zimtype.CompressionZlib, 42)
	require.Error(t, err)
}

func TestMaxBlobs(t *testing.T) {
	t.Parallel()

	raw, err := Pack(testBlobs(), zimtype.CompressionNone, false)
	require.NoError(t, err)
	wide, err := Pack(testBlobs(), zimtype.CompressionNone, true)
	require.NoError(t, err)

	assert.Equal(t, -1, MaxBlobs(nil))
	assert.Equal(t, -1, MaxBlobs([]byte{byte(zimtype.CompressionNone), 0, 0}))
	assert.Equal(t, 0, MaxBlobs([]byte{byte(zimtype.CompressionNone), 0, 0, 0, 0}))
	assert.GreaterOrEqual(t, MaxBlobs(raw), len(testBlobs()))
	assert.GreaterOrEqual(t, MaxBlobs(wide), len(testBlobs()))
	assert.Less(t, MaxBlobs(wide), MaxBlobs(raw))
}
