package zimtype

// Magic is the value of Header.MagicNumber for every archive.
const Magic uint32 = 0x4D495A5A

// Format version written by this codec.
const (
	MajorVersion uint16 = 4
	MinorVersion uint16 = 0
)

// NoMainPage is the MainPageIndex value of an archive without a main page.
const NoMainPage uint32 = 0xFFFFFFFF

// Header is the fixed-size record at the start of every archive.
type Header struct {
	MagicNumber     uint32
	MajorVersion    uint16
	MinorVersion    uint16
	EntryCount      uint32
	ArticleCount    uint32
	ClusterCount    uint32
	RedirectCount   uint32
	MimeListPos     uint64
	TitleIndexPos   uint64
	ClusterPtrPos   uint64
	ClusterCountPos uint64
	MainPageIndex   uint32
	LayoutPageIndex uint32
	ChecksumPos     uint64

	// IndexPtrPos locates the index-pointer table. Zero means the table
	// directly follows the header.
	IndexPtrPos uint64
}

// HasMainPage reports whether the header names a main page.
func (h *Header) HasMainPage() bool {
	return h.MainPageIndex != NoMainPage
}
