package navigation

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"image-viewer/internal/media"
)

func listingOf(names ...string) *media.DirectoryListing {
	l := &media.DirectoryListing{Dir: "/pics"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range names {
		l.Entries = append(l.Entries, media.ImageEntry{
			Path:    "/pics/" + n,
			Name:    n,
			Size:    int64(100 * (len(names) - i)),
			ModTime: base.Add(time.Duration(i) * time.Hour),
			Format:  media.FormatPNG,
		})
	}
	l.Sort(media.SortByName, media.SortAsc)
	return l
}

func stateOf(overflow Overflow, names ...string) *State {
	s := New(overflow)
	s.SetListing(listingOf(names...), "")
	return s
}

func TestAdvanceBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		overflow Overflow
		start    int
		delta    int
		want     int
		moved    bool
	}{
		{"clamp before first", Clamp, 0, -1, 0, false},
		{"clamp after last", Clamp, 2, 1, 2, false},
		{"clamp large jump", Clamp, 1, 10, 2, true},
		{"wrap before first", Wrap, 0, -1, 2, true},
		{"wrap after last", Wrap, 2, 1, 0, true},
		{"wrap large negative", Wrap, 1, -7, 0, true},
		{"middle forward", Clamp, 0, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateOf(tt.overflow, "a.png", "b.png", "c.png")
			if err := s.JumpTo(tt.start); err != nil {
				t.Fatal(err)
			}
			// repeated calls behave consistently
			for range 3 {
				s.JumpTo(tt.start)
				moved := s.Advance(tt.delta)
				if s.Index() != tt.want || moved != tt.moved {
					t.Fatalf("Advance(%d) from %d = (%d, %v), want (%d, %v)",
						tt.delta, tt.start, s.Index(), moved, tt.want, tt.moved)
				}
			}
		})
	}
}

func TestEmptyListing(t *testing.T) {
	s := New(Clamp)
	if s.Index() != -1 {
		t.Errorf("Index() = %d, want -1", s.Index())
	}
	if s.Next() || s.Prev() || s.First() || s.Last() {
		t.Error("movement on empty listing should report false")
	}
	if _, ok := s.Current(); ok {
		t.Error("Current() on empty listing should be false")
	}
	if err := s.JumpTo(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("JumpTo(0) error = %v, want ErrIndexOutOfRange", err)
	}
	if w := s.Window(3); w != nil {
		t.Errorf("Window() = %v, want nil", w)
	}
}

func TestJumpFirstLast(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png", "d.png")

	if err := s.JumpTo(2); err != nil {
		t.Fatal(err)
	}
	if c, _ := s.Current(); c.Name != "c.png" {
		t.Errorf("Current() = %s, want c.png", c.Name)
	}
	if err := s.JumpTo(4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("JumpTo(4) error = %v", err)
	}
	if err := s.JumpTo(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("JumpTo(-1) error = %v", err)
	}
	if !s.Last() || s.Index() != 3 {
		t.Errorf("Last() index = %d", s.Index())
	}
	if s.Last() {
		t.Error("Last() twice should not move")
	}
	if !s.First() || s.Index() != 0 {
		t.Errorf("First() index = %d", s.Index())
	}
}

func TestResortKeepsFocusedPath(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png", "d.png")
	s.JumpTo(1) // b.png

	before := s.Version()
	s.Resort(media.SortByName, media.SortDesc)

	cur, _ := s.Current()
	if cur.Name != "b.png" {
		t.Errorf("after resort Current() = %s, want b.png", cur.Name)
	}
	if s.Index() != 2 {
		t.Errorf("after resort Index() = %d, want 2", s.Index())
	}
	if s.Version() == before {
		t.Error("Resort should bump the version")
	}

	// size ascending: sizes were assigned largest first
	s.Resort(media.SortBySize, media.SortAsc)
	if cur, _ := s.Current(); cur.Name != "b.png" {
		t.Errorf("after size sort Current() = %s, want b.png", cur.Name)
	}
}

func TestRemoveFocusedClamps(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png")
	s.Last()

	var moves []Cursor
	s.OnMove(func(c Cursor) { moves = append(moves, c) })

	if i := s.Remove("/pics/c.png"); i != 2 {
		t.Errorf("Remove() = %d, want 2", i)
	}
	if s.Index() != 1 {
		t.Errorf("Index() = %d, want 1", s.Index())
	}
	if len(moves) != 1 || moves[0].Path != "/pics/b.png" {
		t.Errorf("moves = %+v, want one move to b.png", moves)
	}

	// unknown path is a no-op
	if i := s.Remove("/pics/zzz.png"); i != -1 {
		t.Errorf("Remove(unknown) = %d, want -1", i)
	}
}

func TestRemoveOtherKeepsFocus(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png")
	s.JumpTo(2)

	var moves []Cursor
	s.OnMove(func(c Cursor) { moves = append(moves, c) })

	s.Remove("/pics/a.png")
	if cur, _ := s.Current(); cur.Name != "c.png" {
		t.Errorf("Current() = %s, want c.png", cur.Name)
	}
	if len(moves) != 1 || moves[0].Index != 1 || moves[0].Path != "/pics/c.png" {
		t.Errorf("moves = %+v, want one move to index 1 on c.png", moves)
	}

	// an entry after the cursor leaves the index alone
	s.Insert(media.ImageEntry{Path: "/pics/d.png", Name: "d.png"})
	moves = nil
	s.Remove("/pics/d.png")
	if len(moves) != 0 {
		t.Errorf("removing an entry after the cursor emitted %d moves", len(moves))
	}
}

func TestRemoveLastEntry(t *testing.T) {
	s := stateOf(Clamp, "a.png")
	s.Remove("/pics/a.png")
	if s.Len() != 0 || s.Index() != -1 {
		t.Errorf("Len()=%d Index()=%d, want 0 and -1", s.Len(), s.Index())
	}
}

func TestInsertKeepsFocus(t *testing.T) {
	s := stateOf(Clamp, "b.png", "d.png")
	s.JumpTo(1) // d.png

	var moves []Cursor
	s.OnMove(func(c Cursor) { moves = append(moves, c) })

	e := media.ImageEntry{Path: "/pics/a.png", Name: "a.png"}
	if i := s.Insert(e); i != 0 {
		t.Errorf("Insert() = %d, want 0", i)
	}
	if cur, _ := s.Current(); cur.Name != "d.png" {
		t.Errorf("Current() = %s, want d.png", cur.Name)
	}
	if len(moves) != 1 || moves[0].Index != 2 || moves[0].Path != "/pics/d.png" {
		t.Errorf("moves = %+v, want one move to index 2 on d.png", moves)
	}

	// duplicate delivery is idempotent
	moves = nil
	s.Insert(e)
	if s.Len() != 3 {
		t.Errorf("Len() = %d after duplicate insert, want 3", s.Len())
	}
	// so is an insert after the cursor
	s.Insert(media.ImageEntry{Path: "/pics/z.png", Name: "z.png"})
	if len(moves) != 0 {
		t.Errorf("inserts that keep the index emitted %d moves", len(moves))
	}
}

func TestInsertIntoEmpty(t *testing.T) {
	s := New(Clamp)
	var moves int
	s.OnMove(func(Cursor) { moves++ })

	s.Insert(media.ImageEntry{Path: "/pics/a.png", Name: "a.png"})
	if s.Index() != 0 || moves != 1 {
		t.Errorf("Index()=%d moves=%d, want 0 and 1", s.Index(), moves)
	}
}

func TestReplace(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png")
	s.SetError("/pics/a.png", media.ErrCorruptData)

	e, _ := s.Entry(0)
	e.Size = 1
	if i := s.Replace(e); i != 0 {
		t.Errorf("Replace() = %d, want 0", i)
	}
	if got, _ := s.Entry(0); got.Size != 1 {
		t.Errorf("entry size = %d, want 1", got.Size)
	}
	if err := s.Error("/pics/a.png"); err != nil {
		t.Errorf("Replace should clear the error overlay, got %v", err)
	}
}

func TestSetListingKeepsPath(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png")
	s.JumpTo(1)

	s.SetListing(listingOf("0.png", "a.png", "b.png", "c.png"), "/pics/b.png")
	if cur, _ := s.Current(); cur.Name != "b.png" {
		t.Errorf("Current() = %s, want b.png", cur.Name)
	}

	s.SetListing(listingOf("x.png"), "/pics/b.png")
	if s.Index() != 0 {
		t.Errorf("Index() = %d, want clamped 0", s.Index())
	}
}

func TestWindow(t *testing.T) {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("%02d.png", i)
	}

	tests := []struct {
		name     string
		overflow Overflow
		index    int
		radius   int
		want     []int
	}{
		{"middle", Clamp, 5, 2, []int{5, 6, 4, 7, 3}},
		{"start clamp", Clamp, 0, 2, []int{0, 1, 2}},
		{"end clamp", Clamp, 9, 1, []int{9, 8}},
		{"start wrap", Wrap, 0, 2, []int{0, 1, 9, 2, 8}},
		{"radius covers all", Wrap, 0, 20, []int{0, 1, 9, 2, 8, 3, 7, 4, 6, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateOf(tt.overflow, names...)
			s.JumpTo(tt.index)
			if got := s.Window(tt.radius); !slices.Equal(got, tt.want) {
				t.Errorf("Window(%d) = %v, want %v", tt.radius, got, tt.want)
			}
			for _, i := range tt.want {
				if !s.InWindow(i, tt.radius) {
					t.Errorf("InWindow(%d) = false", i)
				}
			}
		})
	}

	s := stateOf(Clamp, names...)
	s.JumpTo(0)
	if s.InWindow(9, 2) {
		t.Error("InWindow(9, 2) from 0 with Clamp should be false")
	}
	s.SetOverflow(Wrap)
	if !s.InWindow(9, 2) {
		t.Error("InWindow(9, 2) from 0 with Wrap should be true")
	}
}

func TestOnMoveFiresOnEveryCursorChange(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png", "c.png")
	var got []int
	s.OnMove(func(c Cursor) { got = append(got, c.Index) })

	s.Next()
	s.Next()
	s.Next() // clamped, no move
	s.First()
	s.JumpTo(0) // same index, no move

	if want := []int{1, 2, 0}; !slices.Equal(got, want) {
		t.Errorf("moves = %v, want %v", got, want)
	}
}

func TestErrorOverlay(t *testing.T) {
	s := stateOf(Clamp, "a.png", "b.png")
	s.SetError("/pics/b.png", media.ErrUnsupportedFormat)

	if !errors.Is(s.Error("/pics/b.png"), media.ErrUnsupportedFormat) {
		t.Error("Error() should return the overlay")
	}
	if s.Error("/pics/a.png") != nil {
		t.Error("a.png should have no overlay")
	}

	s.ClearError("/pics/b.png")
	if s.Error("/pics/b.png") != nil {
		t.Error("ClearError should remove the overlay")
	}

	s.SetError("/pics/b.png", media.ErrCorruptData)
	s.Remove("/pics/b.png")
	if s.Error("/pics/b.png") != nil {
		t.Error("Remove should clear the overlay")
	}
}

func TestParseOverflow(t *testing.T) {
	tests := []struct {
		in      string
		want    Overflow
		wantErr bool
	}{
		{"", Clamp, false},
		{"clamp", Clamp, false},
		{"WRAP", Wrap, false},
		{"bounce", Clamp, true},
	}
	for _, tt := range tests {
		got, err := ParseOverflow(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOverflow(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
