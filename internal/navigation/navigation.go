package navigation

import (
	"errors"
	"fmt"
	"strings"

	"image-viewer/internal/media"
)

// ErrIndexOutOfRange is returned by JumpTo for an index outside the listing.
var ErrIndexOutOfRange = errors.New("index out of range")

// Overflow decides what Advance does past either end of the listing.
type Overflow int

const (
	// Clamp stops at the first and last entries.
	Clamp Overflow = iota
	// Wrap continues from the opposite end.
	Wrap
)

func (o Overflow) String() string {
	if o == Wrap {
		return "wrap"
	}
	return "clamp"
}

// ParseOverflow accepts "clamp" or "wrap". Empty means Clamp.
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return Clamp, nil
	case "wrap":
		return Wrap, nil
	default:
		return Clamp, fmt.Errorf("invalid overflow policy %q (want clamp or wrap)", s)
	}
}

// Cursor identifies the focused entry. Version changes whenever the
// listing's membership or order changes.
type Cursor struct {
	Version uint64 `json:"version"`
	Index   int    `json:"index"`
	Path    string `json:"path,omitempty"`
}

// MoveFunc is called after every cursor change with the new cursor.
type MoveFunc func(Cursor)

// State owns a listing and a cursor into it. It is not safe for concurrent
// use; the viewer serializes all calls on its control loop.
type State struct {
	listing  *media.DirectoryListing
	index    int
	version  uint64
	overflow Overflow
	errs     map[string]error
	onMove   MoveFunc
}

// New returns an empty state using the given overflow policy.
func New(overflow Overflow) *State {
	return &State{
		listing:  &media.DirectoryListing{},
		overflow: overflow,
		errs:     make(map[string]error),
	}
}

// OnMove registers the display-intent callback.
func (s *State) OnMove(fn MoveFunc) { s.onMove = fn }

// Overflow returns the boundary policy.
func (s *State) Overflow() Overflow { return s.overflow }

// SetOverflow changes the boundary policy.
func (s *State) SetOverflow(o Overflow) { s.overflow = o }

// SetListing replaces the listing. The cursor keeps pointing at keepPath if
// it is present, otherwise it is clamped to the old index.
func (s *State) SetListing(l *media.DirectoryListing, keepPath string) {
	if l == nil {
		l = &media.DirectoryListing{}
	}
	s.listing = l
	s.version++

	for path := range s.errs {
		if l.IndexOf(path) < 0 {
			delete(s.errs, path)
		}
	}

	if i := l.IndexOf(keepPath); keepPath != "" && i >= 0 {
		s.index = i
	} else {
		s.index = s.clamp(s.index)
	}
	s.moved()
}

// Listing returns the current listing. Callers must not modify it.
func (s *State) Listing() *media.DirectoryListing { return s.listing }

// Len returns the number of entries.
func (s *State) Len() int { return s.listing.Len() }

// Version returns the listing version.
func (s *State) Version() uint64 { return s.version }

// Index returns the cursor position, or -1 for an empty listing.
func (s *State) Index() int {
	if s.Len() == 0 {
		return -1
	}
	return s.index
}

// Current returns the focused entry.
func (s *State) Current() (media.ImageEntry, bool) {
	if s.Len() == 0 {
		return media.ImageEntry{}, false
	}
	return s.listing.Entries[s.index], true
}

// Entry returns the entry at i.
func (s *State) Entry(i int) (media.ImageEntry, bool) {
	if i < 0 || i >= s.Len() {
		return media.ImageEntry{}, false
	}
	return s.listing.Entries[i], true
}

// Cursor returns the current cursor.
func (s *State) Cursor() Cursor {
	c := Cursor{Version: s.version, Index: s.Index()}
	if e, ok := s.Current(); ok {
		c.Path = e.Path
	}
	return c
}

// Advance moves the cursor by delta according to the overflow policy and
// reports whether it moved.
func (s *State) Advance(delta int) bool {
	n := s.Len()
	if n == 0 || delta == 0 {
		return false
	}

	next := s.index + delta
	switch s.overflow {
	case Wrap:
		next %= n
		if next < 0 {
			next += n
		}
	default:
		next = s.clamp(next)
	}

	if next == s.index {
		return false
	}
	s.index = next
	s.moved()
	return true
}

// Next is Advance(1).
func (s *State) Next() bool { return s.Advance(1) }

// Prev is Advance(-1).
func (s *State) Prev() bool { return s.Advance(-1) }

// JumpTo focuses index i.
func (s *State) JumpTo(i int) error {
	if i < 0 || i >= s.Len() {
		return fmt.Errorf("%w: %d (listing has %d entries)", ErrIndexOutOfRange, i, s.Len())
	}
	if i != s.index {
		s.index = i
		s.moved()
	}
	return nil
}

// First focuses the first entry.
func (s *State) First() bool {
	if s.Len() == 0 || s.index == 0 {
		return false
	}
	s.index = 0
	s.moved()
	return true
}

// Last focuses the last entry.
func (s *State) Last() bool {
	n := s.Len()
	if n == 0 || s.index == n-1 {
		return false
	}
	s.index = n - 1
	s.moved()
	return true
}

// Resort reorders the listing and keeps the cursor on the same path.
func (s *State) Resort(field media.SortField, order media.SortOrder) {
	cur, ok := s.Current()
	s.listing.Sort(field, order)
	s.version++
	if ok {
		if i := s.listing.IndexOf(cur.Path); i >= 0 {
			s.index = i
		}
	}
	s.index = s.clamp(s.index)
	s.moved()
}

// Insert adds e in sort order. The cursor stays on the focused path; when
// that shifts its index a move is emitted, since the window moved with it.
func (s *State) Insert(e media.ImageEntry) int {
	cur, ok := s.Current()
	prev := s.index
	i := s.listing.Insert(e)
	s.version++
	delete(s.errs, e.Path)
	if ok {
		s.index = s.listing.IndexOf(cur.Path)
	} else {
		s.index = 0
	}
	if !ok || s.index != prev {
		s.moved()
	}
	return i
}

// Remove drops path from the listing and returns its former index, or -1
// if it was not present. Removing the focused entry clamps the cursor and
// emits a move; removing any other entry keeps the focused path, emitting a
// move only if an earlier entry went and the index shifted.
func (s *State) Remove(path string) int {
	i := s.listing.IndexOf(path)
	if i < 0 {
		return -1
	}
	focused := i == s.index

	s.listing.Remove(path)
	s.version++
	delete(s.errs, path)

	switch {
	case focused:
		s.index = s.clamp(s.index)
		s.moved()
	case i < s.index:
		s.index--
		s.moved()
	}
	return i
}

// Replace swaps the entry with the same path for e, for a modified file
// whose metadata changed.
func (s *State) Replace(e media.ImageEntry) int {
	cur, ok := s.Current()
	prev := s.index
	i := s.listing.Replace(e)
	s.version++
	delete(s.errs, e.Path)
	if ok {
		if j := s.listing.IndexOf(cur.Path); j >= 0 {
			s.index = j
		}
	}
	if s.index != prev {
		s.moved()
	}
	return i
}

// Window returns the indices within radius of the cursor, nearest first.
// The cursor itself is first. With Wrap, the window wraps around the ends.
func (s *State) Window(radius int) []int {
	n := s.Len()
	if n == 0 {
		return nil
	}
	out := []int{s.index}
	seen := map[int]bool{s.index: true}
	for d := 1; d <= radius; d++ {
		for _, i := range []int{s.index + d, s.index - d} {
			if s.overflow == Wrap {
				i = ((i % n) + n) % n
			}
			if i < 0 || i >= n || seen[i] {
				continue
			}
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// InWindow reports whether i is within radius of the cursor.
func (s *State) InWindow(i, radius int) bool {
	n := s.Len()
	if n == 0 || i < 0 || i >= n {
		return false
	}
	d := i - s.index
	if d < 0 {
		d = -d
	}
	if s.overflow == Wrap && n-d < d {
		d = n - d
	}
	return d <= radius
}

// SetError attaches a decode error overlay to path.
func (s *State) SetError(path string, err error) {
	if err == nil {
		delete(s.errs, path)
		return
	}
	s.errs[path] = err
}

// Error returns the overlay for path, if any.
func (s *State) Error(path string) error { return s.errs[path] }

// Errors returns a copy of the overlay keyed by path.
func (s *State) Errors() map[string]error {
	out := make(map[string]error, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

// ClearError removes the overlay for path.
func (s *State) ClearError(path string) { delete(s.errs, path) }

func (s *State) clamp(i int) int {
	n := s.Len()
	switch {
	case n == 0:
		return 0
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	default:
		return i
	}
}

func (s *State) moved() {
	if s.onMove != nil {
		s.onMove(s.Cursor())
	}
}
