// Package index provides a sorted (namespace, url) view over an archive
// directory.
package index

import (
	"cmp"
	"iter"
	"slices"
	"sort"
	"strings"

	"github.com/meigma/zim/internal/zimtype"
)

// Index provides O(log n) lookups by (namespace, url) and prefix scans,
// independent of the order entries are stored in.
//
// Index retains the entries slice; callers must not modify it afterwards.
type Index struct {
	entries []zimtype.Entry
	order   []uint32
}

// Build sorts a view of entries. Entries sharing a key keep their
// directory order, so Lookup returns the lowest index.
func Build(entries []zimtype.Entry) *Index {
	order := make([]uint32, len(entries))
	for i := range order {
		order[i] = uint32(i) //nolint:gosec // entry counts come from a u32 header field
	}
	slices.SortStableFunc(order, func(a, b uint32) int {
		return compare(&entries[a], entries[b].Namespace, entries[b].URL)
	})
	return &Index{entries: entries, order: order}
}

func compare(e *zimtype.Entry, ns zimtype.Namespace, url string) int {
	if c := cmp.Compare(e.Namespace, ns); c != 0 {
		return c
	}
	return strings.Compare(e.URL, url)
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.order)
}

// Lookup returns the directory index of the entry at (ns, url).
func (idx *Index) Lookup(ns zimtype.Namespace, url string) (uint32, bool) {
	i := idx.search(ns, url)
	if i < len(idx.order) {
		if e := &idx.entries[idx.order[i]]; e.Namespace == ns && e.URL == url {
			return idx.order[i], true
		}
	}
	return 0, false
}

func (idx *Index) search(ns zimtype.Namespace, url string) int {
	return sort.Search(len(idx.order), func(i int) bool {
		return compare(&idx.entries[idx.order[i]], ns, url) >= 0
	})
}

// Sorted returns an iterator over directory indices in key order.
func (idx *Index) Sorted() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for _, i := range idx.order {
			if !yield(i) {
				return
			}
		}
	}
}

// Prefix returns an iterator over the directory indices of entries in ns
// whose URL starts with prefix, in key order.
func (idx *Index) Prefix(ns zimtype.Namespace, prefix string) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for i := idx.search(ns, prefix); i < len(idx.order); i++ {
			e := &idx.entries[idx.order[i]]
			if e.Namespace != ns || !strings.HasPrefix(e.URL, prefix) {
				return
			}
			if !yield(idx.order[i]) {
				return
			}
		}
	}
}
