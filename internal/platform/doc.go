// Package platform wraps OS-specific file access used when importing
// directory trees into an archive.
package platform
