package zimtype

// Namespace partitions the URL space of an archive by content kind.
type Namespace byte

// Well-known namespaces.
const (
	NamespaceContent     Namespace = 'C'
	NamespaceArticle     Namespace = 'A'
	NamespaceImage       Namespace = 'I'
	NamespaceMetadata    Namespace = 'M'
	NamespaceRawData     Namespace = '-'
	NamespaceStyle       Namespace = 'S'
	NamespaceScript      Namespace = 'J'
	NamespaceFont        Namespace = 'T'
	NamespaceTranslation Namespace = 'U'
	NamespaceVideo       Namespace = 'V'
	NamespaceAudio       Namespace = 'W'
)

// Valid reports whether ns is a printable, non-space ASCII character.
func (ns Namespace) Valid() bool {
	return ns > ' ' && ns < 0x7f
}

// String returns the namespace as a one-character string.
func (ns Namespace) String() string {
	return string(rune(ns))
}
