package media

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DirectoryListing is the ordered set of images in one directory together with
// the sort configuration that produced the order.
type DirectoryListing struct {
	Dir       string       `json:"dir"`
	Entries   []ImageEntry `json:"entries"`
	SortField SortField    `json:"sortField"`
	SortOrder SortOrder    `json:"sortOrder"`
}

// Len returns the number of entries.
func (l *DirectoryListing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// sortName folds a file name for comparison. NFC first so that names written
// by macOS (NFD) and Linux tools sort together.
func sortName(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

// less orders two entries by the active key; ties fall back to path so the
// order is total. Descending reverses the key only, never the tie-break.
func (l *DirectoryListing) less(a, b ImageEntry) bool {
	var cmp int
	switch l.SortField {
	case SortByDate:
		cmp = a.ModTime.Compare(b.ModTime)
	case SortBySize:
		switch {
		case a.Size < b.Size:
			cmp = -1
		case a.Size > b.Size:
			cmp = 1
		}
	default:
		cmp = strings.Compare(sortName(a.Name), sortName(b.Name))
	}

	if l.SortOrder == SortDesc {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	return a.Path < b.Path
}

// Sort reorders the entries for the given key and direction.
func (l *DirectoryListing) Sort(field SortField, order SortOrder) {
	l.SortField = field
	l.SortOrder = order
	sort.SliceStable(l.Entries, func(i, j int) bool {
		return l.less(l.Entries[i], l.Entries[j])
	})
}

// IndexOf returns the position of path, or -1.
func (l *DirectoryListing) IndexOf(path string) int {
	if l == nil {
		return -1
	}
	for i := range l.Entries {
		if l.Entries[i].Path == path {
			return i
		}
	}
	return -1
}

// Insert adds e at its sorted position and returns that index. An entry
// already present under the same path is replaced instead, which keeps
// watcher deliveries idempotent.
func (l *DirectoryListing) Insert(e ImageEntry) int {
	if i := l.IndexOf(e.Path); i >= 0 {
		return l.Replace(e)
	}
	i := sort.Search(len(l.Entries), func(i int) bool {
		return l.less(e, l.Entries[i])
	})
	l.Entries = append(l.Entries, ImageEntry{})
	copy(l.Entries[i+1:], l.Entries[i:])
	l.Entries[i] = e
	return i
}

// Remove deletes path and returns the index it occupied, or -1 when absent.
func (l *DirectoryListing) Remove(path string) int {
	i := l.IndexOf(path)
	if i < 0 {
		return -1
	}
	l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
	return i
}

// Replace swaps in new metadata for an existing path, moving it if the sort
// key changed. Returns the new index, or -1 when the path is not listed.
func (l *DirectoryListing) Replace(e ImageEntry) int {
	if l.Remove(e.Path) < 0 {
		return -1
	}
	return l.Insert(e)
}

// Clone returns a copy whose entry slice is independent of l.
func (l *DirectoryListing) Clone() *DirectoryListing {
	if l == nil {
		return nil
	}
	c := *l
	c.Entries = append([]ImageEntry(nil), l.Entries...)
	return &c
}
