package zimtype

// RedirectMimeIndex is the mimetype-index value that marks a redirect entry.
const RedirectMimeIndex uint32 = 0xFFFF

// EntryKind discriminates the two directory entry variants.
type EntryKind uint8

const (
	KindContent EntryKind = iota + 1
	KindRedirect
)

// String returns the name of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Entry is a directory entry. Kind selects which variant fields are
// meaningful: ClusterNumber and BlobNumber for KindContent, RedirectIndex
// for KindRedirect.
type Entry struct {
	// Kind is set when the entry is constructed or decoded.
	Kind EntryKind

	// Index is the entry's position in the archive directory.
	Index uint32

	// MimeIndex indexes the archive's mimetype table.
	// Redirect entries carry RedirectMimeIndex.
	MimeIndex uint32

	Namespace Namespace
	Revision  uint32

	// URL is unique within its namespace.
	URL string

	// Title may be empty; see DisplayTitle.
	Title string

	ClusterNumber uint32
	BlobNumber    uint32

	// RedirectIndex is the directory index of the aliased entry.
	RedirectIndex uint32
}

// NewContentEntry returns a content entry pointing at a blob.
func NewContentEntry(ns Namespace, url, title string, mimeIndex, cluster, blob uint32) Entry {
	return Entry{
		Kind:          KindContent,
		MimeIndex:     mimeIndex,
		Namespace:     ns,
		URL:           url,
		Title:         title,
		ClusterNumber: cluster,
		BlobNumber:    blob,
	}
}

// NewRedirectEntry returns a redirect entry aliasing the entry at target.
func NewRedirectEntry(ns Namespace, url, title string, target uint32) Entry {
	return Entry{
		Kind:          KindRedirect,
		MimeIndex:     RedirectMimeIndex,
		Namespace:     ns,
		URL:           url,
		Title:         title,
		RedirectIndex: target,
	}
}

// IsRedirect reports whether e aliases another entry.
func (e *Entry) IsRedirect() bool {
	return e.Kind == KindRedirect
}

// DisplayTitle returns the title, falling back to the URL when empty.
func (e *Entry) DisplayTitle() string {
	if e.Title == "" {
		return e.URL
	}
	return e.Title
}

// Path returns the namespace-qualified URL, e.g. "A/index.html".
func (e *Entry) Path() string {
	return e.Namespace.String() + "/" + e.URL
}
