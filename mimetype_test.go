package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeTypeFromExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".html", "text/html"},
		{".css", "text/css"},
		{".js", "application/javascript"},
		{".png", "image/png"},
		{".jpg", "image/jpeg"},
		{".svg", "image/svg+xml"},
		{".HTML", "text/html"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeTypeFromExtension(tt.ext), tt.ext)
	}
}

func TestDetectMimeType(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "text/html", DetectMimeType("index.html", nil))
	assert.Equal(t, "image/png", DetectMimeType("logo", png))
	assert.Equal(t, "text/plain", DetectMimeType("README", []byte("hello world\n")))
	assert.Equal(t, "application/octet-stream", DetectMimeType("empty", nil))
}
