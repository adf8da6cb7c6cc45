package write

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSkipCompression(t *testing.T) {
	t.Parallel()

	skip := DefaultSkipCompression(64)

	tests := []struct {
		url  string
		size int
		want bool
	}{
		{"index.html", 1024, false},
		{"index.html", 10, true},
		{"img/photo.JPG", 4096, true},
		{"fonts/a.woff2", 4096, true},
		{"data.json", 64, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, skip(tt.url, tt.size), tt.url)
	}

	assert.False(t, DefaultSkipCompression(0)("a.txt", 0))
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	always := func(string, int) bool { return true }
	never := func(string, int) bool { return false }

	assert.False(t, ShouldSkip("a", 1, nil))
	assert.False(t, ShouldSkip("a", 1, []SkipCompressionFunc{nil, never}))
	assert.True(t, ShouldSkip("a", 1, []SkipCompressionFunc{never, always}))
}
