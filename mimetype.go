package zim

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Common mimetypes.
const (
	MimeTypeHTML       = "text/html"
	MimeTypeCSS        = "text/css"
	MimeTypeJavaScript = "application/javascript"
	MimeTypeJSON       = "application/json"
	MimeTypePlain      = "text/plain"
	MimeTypePNG        = "image/png"
	MimeTypeJPEG       = "image/jpeg"
	MimeTypeGIF        = "image/gif"
	MimeTypeSVG        = "image/svg+xml"
	MimeTypeWebP       = "image/webp"
	MimeTypeOctet      = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".html":  MimeTypeHTML,
	".htm":   MimeTypeHTML,
	".css":   MimeTypeCSS,
	".js":    MimeTypeJavaScript,
	".mjs":   MimeTypeJavaScript,
	".json":  MimeTypeJSON,
	".txt":   MimeTypePlain,
	".png":   MimeTypePNG,
	".jpg":   MimeTypeJPEG,
	".jpeg":  MimeTypeJPEG,
	".gif":   MimeTypeGIF,
	".svg":   MimeTypeSVG,
	".webp":  MimeTypeWebP,
	".ico":   "image/x-icon",
	".pdf":   "application/pdf",
	".xml":   "application/xml",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".mp3":   "audio/mpeg",
	".ogg":   "audio/ogg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
}

// MimeTypeFromExtension returns the mimetype for a file extension such as
// ".html". The lookup is case-insensitive. Unknown extensions return
// application/octet-stream.
func MimeTypeFromExtension(ext string) string {
	if t, ok := extensionTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return MimeTypeOctet
}

// DetectMimeType picks a mimetype for an article named name. The
// extension wins when it is known; otherwise content is sniffed.
func DetectMimeType(name string, content []byte) string {
	if t, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	if len(content) == 0 {
		return MimeTypeOctet
	}
	mt := mimetype.Detect(content)
	// Drop parameters such as "; charset=utf-8" so the table stays small.
	t, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(t)
}
