package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"image-viewer/internal/cache"
	"image-viewer/internal/filesystem"
	"image-viewer/internal/media"
	"image-viewer/internal/navigation"
	"image-viewer/internal/workers"
)

const waitTimeout = 5 * time.Second

// heicHeader sniffs as HEIF, for which no decoder is registered in tests.
var heicHeader = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0x00, 0x00, 0x00, 0x00, 'm', 'i', 'f', '1'}

// corruptPNG has a valid signature followed by garbage.
var corruptPNG = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("this is not a chunk stream")...)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// tempDir returns a resolved temporary directory so paths match what the
// watcher reports.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DisableWatcher = true
	cfg.Workers = 2
	cfg.Retry = filesystem.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return cfg
}

func newTestViewer(t *testing.T, cfg Config) *Viewer {
	t.Helper()
	v, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func open(t *testing.T, v *Viewer, dir string) *media.DirectoryListing {
	t.Helper()
	l, err := v.OpenDirectory(dir)
	if err != nil {
		t.Fatalf("OpenDirectory(%s) error = %v", dir, err)
	}
	return l
}

// settle requests index until it is no longer pending.
func settle(t *testing.T, get func(int) (Result, error), index int) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	for {
		r, err := get(index)
		if err != nil {
			t.Fatalf("get(%d) error = %v", index, err)
		}
		if r.Status != cache.StatusPending {
			return r
		}
		if _, err := r.Handle.Wait(ctx); errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("timed out waiting for %d", index)
		}
	}
}

// expectEvent reads from ch until match returns true.
func expectEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMixedDirectory(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 8, 6)
	writeFile(t, filepath.Join(dir, "b.xyz"), heicHeader)
	writeFile(t, filepath.Join(dir, "c.png"), corruptPNG)

	v := newTestViewer(t, testConfig())
	l := open(t, v, dir)
	if l.Len() != 3 {
		t.Fatalf("listing has %d entries, want 3", l.Len())
	}

	tests := []struct {
		index int
		name  string
		want  media.ErrorKind
	}{
		{0, "a.png", media.KindNone},
		{1, "b.xyz", media.KindUnsupportedFormat},
		{2, "c.png", media.KindCorruptData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := settle(t, v.GetDisplayImage, tt.index)
			if r.Entry.Name != tt.name {
				t.Fatalf("entry = %s, want %s", r.Entry.Name, tt.name)
			}
			if r.Kind() != tt.want {
				t.Errorf("kind = %q, want %q (err %v)", r.Kind(), tt.want, r.Err)
			}
			if tt.want == media.KindNone {
				if r.Status != cache.StatusReady || r.Bitmap.Width() != 8 {
					t.Errorf("status=%v bitmap=%v, want ready 8px wide", r.Status, r.Bitmap)
				}
				return
			}
			overlay, err := v.EntryError(tt.index)
			if err != nil || media.KindOf(overlay) != tt.want {
				t.Errorf("EntryError(%d) = (%v, %v), want kind %q", tt.index, overlay, err, tt.want)
			}
		})
	}

	// failures elsewhere never affect a.png
	if r := settle(t, v.GetDisplayImage, 0); r.Status != cache.StatusReady {
		t.Errorf("a.png status after failures = %v", r.Status)
	}
	if r := settle(t, v.GetThumbnail, 0); r.Status != cache.StatusReady {
		t.Errorf("a.png thumbnail status = %v (err %v)", r.Status, r.Err)
	}
}

func TestThumbnailCanceledWhenScrolledAway(t *testing.T) {
	dir := tempDir(t)
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("img%02d.png", i)), []byte("x"))
	}

	gate := make(chan struct{})
	var mu sync.Mutex
	var decoded []media.CacheKey

	cfg := testConfig()
	cfg.Workers = 1
	cfg.PrefetchWindow = 2
	cfg.decode = func(ctx context.Context, req workers.Request) (*media.Bitmap, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, workers.ErrStopped
		}
		mu.Lock()
		decoded = append(decoded, req.Key)
		mu.Unlock()
		return media.NewBitmap(image.NewNRGBA(image.Rect(0, 0, 2, 2))), nil
	}

	v := newTestViewer(t, cfg)
	l := open(t, v, dir)
	if _, err := v.JumpTo(4); err != nil {
		t.Fatal(err)
	}

	r, err := v.GetThumbnail(5)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != cache.StatusPending {
		t.Fatalf("GetThumbnail(5) status = %v, want pending", r.Status)
	}

	for i := 5; i <= 7; i++ {
		v.Next()
	}
	if r.Handle.Ready() {
		t.Fatal("thumbnail 5 should still be queued while within the window")
	}

	v.Next() // cursor 8: index 5 is now 3 away
	v.Next()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if _, err := r.Handle.Wait(ctx); !errors.Is(err, workers.ErrCanceled) {
		t.Fatalf("thumbnail 5 result = %v, want ErrCanceled", err)
	}

	close(gate)
	deadline := time.Now().Add(waitTimeout)
	for v.Pool().QueueDepth() > 0 || v.Pool().InFlight() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("queue did not drain")
		}
		time.Sleep(5 * time.Millisecond)
	}

	thumb5 := l.Entries[5].Key(media.Thumbnail)
	mu.Lock()
	defer mu.Unlock()
	for _, k := range decoded {
		if k == thumb5 {
			t.Error("canceled thumbnail 5 was decoded")
		}
	}
}

func TestResortKeepsFocus(t *testing.T) {
	dir := tempDir(t)
	for _, n := range []string{"a.png", "b.png", "c.png", "d.png"} {
		writePNG(t, filepath.Join(dir, n), 2, 2)
	}
	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	v.JumpTo(1)

	c, err := v.Resort(media.SortByName, media.SortDesc)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(c.Path) != "b.png" || c.Index != 2 {
		t.Errorf("cursor after resort = %+v, want b.png at 2", c)
	}
}

func TestNavigationBoundaries(t *testing.T) {
	dir := tempDir(t)
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, filepath.Join(dir, n), 2, 2)
	}

	tests := []struct {
		overflow navigation.Overflow
		wantPrev int
	}{
		{navigation.Clamp, 0},
		{navigation.Wrap, 2},
	}
	for _, tt := range tests {
		t.Run(tt.overflow.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.Overflow = tt.overflow
			v := newTestViewer(t, cfg)
			open(t, v, dir)

			c, _ := v.Prev()
			if c.Index != tt.wantPrev {
				t.Errorf("Prev() from 0 = %d, want %d", c.Index, tt.wantPrev)
			}
			v.Last()
			c, _ = v.Next()
			want := 2
			if tt.overflow == navigation.Wrap {
				want = 0
			}
			if c.Index != want {
				t.Errorf("Next() from last = %d, want %d", c.Index, want)
			}
		})
	}
}

func TestEditSaveReprimesCache(t *testing.T) {
	dir := tempDir(t)
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 4, 2)

	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	settle(t, v.GetDisplayImage, 0)

	st, err := v.Rotate90()
	if err != nil {
		t.Fatalf("Rotate90() error = %v", err)
	}
	if !st.Active || !st.Dirty || st.State != "editing" {
		t.Errorf("status = %+v, want active dirty editing", st)
	}

	r, _ := v.GetDisplayImage(0)
	if r.Bitmap.Width() != 2 || r.Bitmap.Height() != 4 {
		t.Errorf("display while editing = %dx%d, want 2x4", r.Bitmap.Width(), r.Bitmap.Height())
	}

	st, err = v.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if st.Active || st.State != "clean" {
		t.Errorf("status after save = %+v, want inactive clean", st)
	}

	r, _ = v.GetDisplayImage(0)
	if r.Status != cache.StatusReady {
		t.Fatalf("display after save status = %v, want ready without decoding", r.Status)
	}
	if r.Bitmap.Width() != 2 || r.Bitmap.Height() != 4 {
		t.Errorf("display after save = %dx%d, want 2x4", r.Bitmap.Width(), r.Bitmap.Height())
	}

	onDisk, _, err := media.DecodeFile(path, filesystem.DefaultRetryConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !onDisk.Equal(r.Bitmap) {
		t.Error("file on disk should hold the rotated pixels")
	}
}

func TestEditUndoAndInvalidCrop(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 4, 4)

	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	orig := settle(t, v.GetDisplayImage, 0).Bitmap

	if _, err := v.Undo(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Undo() without session error = %v, want ErrNoSession", err)
	}

	st, err := v.Crop(image.Rect(0, 0, 5, 5))
	if !errors.Is(err, media.ErrInvalidCropRegion) {
		t.Fatalf("Crop() error = %v, want ErrInvalidCropRegion", err)
	}
	if st.Dirty || st.Depth != 0 {
		t.Errorf("status after rejected crop = %+v, want clean", st)
	}

	v.FlipH()
	v.Crop(image.Rect(1, 1, 3, 3))
	st, _ = v.Undo()
	st, _ = v.Undo()
	if st.State != "clean" || st.Dirty {
		t.Errorf("status after undoing everything = %+v", st)
	}
	r, _ := v.GetDisplayImage(0)
	if !r.Bitmap.Equal(orig) {
		t.Error("undo should restore the original pixels")
	}

	if _, err := v.Discard(); err != nil {
		t.Errorf("Discard() error = %v", err)
	}
	if st, _ := v.EditStatus(); st.Active {
		t.Error("session should be gone after Discard")
	}
}

func TestNavigatingAwayDiscardsEdit(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)

	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	settle(t, v.GetDisplayImage, 0)

	if _, err := v.FlipV(); err != nil {
		t.Fatal(err)
	}
	v.Next()
	if st, _ := v.EditStatus(); st.Active {
		t.Errorf("edit session survived navigation: %+v", st)
	}
}

func TestOpenDirectoryErrors(t *testing.T) {
	v := newTestViewer(t, testConfig())

	if _, err := v.GetDisplayImage(0); !errors.Is(err, ErrNoDirectory) {
		t.Errorf("GetDisplayImage() before open error = %v, want ErrNoDirectory", err)
	}
	if _, err := v.OpenDirectory(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, media.ErrDirectoryNotFound) {
		t.Errorf("OpenDirectory(missing) error = %v, want ErrDirectoryNotFound", err)
	}

	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	open(t, v, dir)
	if _, err := v.GetThumbnail(3); !errors.Is(err, navigation.ErrIndexOutOfRange) {
		t.Errorf("GetThumbnail(3) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestOpenDirectoryDiscardsPreviousWork(t *testing.T) {
	first, second := tempDir(t), tempDir(t)
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(first, fmt.Sprintf("%d.png", i)), []byte("x"))
	}
	writeFile(t, filepath.Join(second, "only.png"), []byte("x"))

	gate := make(chan struct{})
	cfg := testConfig()
	cfg.Workers = 1
	cfg.decode = func(ctx context.Context, req workers.Request) (*media.Bitmap, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, workers.ErrStopped
		}
		return media.NewBitmap(image.NewNRGBA(image.Rect(0, 0, 1, 1))), nil
	}
	v := newTestViewer(t, cfg)

	l := open(t, v, first)
	r, _ := v.GetThumbnail(4)
	open(t, v, second)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if _, err := r.Handle.Wait(ctx); !errors.Is(err, workers.ErrCanceled) {
		t.Errorf("queued work from previous directory = %v, want ErrCanceled", err)
	}

	close(gate)
	deadline := time.Now().Add(waitTimeout)
	for v.Pool().InFlight() > 0 || v.Pool().QueueDepth() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("queue did not drain")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// the decode that was running for the old directory is discarded
	if _, ok := v.Cache().Peek(l.Entries[0].Key(media.Full)); ok {
		t.Error("result from previous epoch should not be cached")
	}
}

func TestWatcherRemovesFocusedPath(t *testing.T) {
	dir := tempDir(t)
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, filepath.Join(dir, n), 2, 2)
	}

	cfg := testConfig()
	cfg.DisableWatcher = false
	v := newTestViewer(t, cfg)
	l := open(t, v, dir)

	v.Last()
	if r := settle(t, v.GetDisplayImage, 2); r.Status != cache.StatusReady {
		t.Fatalf("c.png status = %v", r.Status)
	}
	key := l.Entries[2].Key(media.Full)

	events, unsubscribe := v.Subscribe(256)
	defer unsubscribe()

	if err := os.Remove(l.Entries[2].Path); err != nil {
		t.Fatal(err)
	}
	expectEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventListing && ev.Op == OpRemove
	})

	c, _ := v.Cursor()
	if c.Index != 1 || filepath.Base(c.Path) != "b.png" {
		t.Errorf("cursor after removal = %+v, want b.png at 1", c)
	}
	if _, ok := v.Cache().Peek(key); ok {
		t.Error("cache still serves the removed path")
	}
}

func TestWatcherInsertsCreatedFile(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)

	cfg := testConfig()
	cfg.DisableWatcher = false
	v := newTestViewer(t, cfg)
	open(t, v, dir)

	events, unsubscribe := v.Subscribe(256)
	defer unsubscribe()

	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	expectEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventListing && ev.Op == OpInsert && filepath.Base(ev.Path) == "a.png"
	})

	l, _ := v.Listing()
	if l.Len() != 2 || l.Entries[0].Name != "a.png" {
		t.Errorf("listing after create = %+v", l.Entries)
	}
	c, _ := v.Cursor()
	if filepath.Base(c.Path) != "b.png" {
		t.Errorf("focus moved to %s, want b.png", c.Path)
	}
}

func TestRescanKeepsFocus(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "c.png"), 2, 2)

	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	v.Last()

	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	if err := v.Rescan(); err != nil {
		t.Fatal(err)
	}
	c, _ := v.Cursor()
	if filepath.Base(c.Path) != "c.png" || c.Index != 2 {
		t.Errorf("cursor after rescan = %+v, want c.png at 2", c)
	}
}

func TestSubscribeNotifiesPendingImage(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 3, 3)

	v := newTestViewer(t, testConfig())
	events, unsubscribe := v.Subscribe(256)
	defer unsubscribe()

	open(t, v, dir)
	ev := expectEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventImage && ev.Resolution == media.Full
	})
	if ev.Index != 0 || ev.Error != "" {
		t.Errorf("image event = %+v", ev)
	}
}

func TestCloseRejectsCommands(t *testing.T) {
	v, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	events, _ := v.Subscribe(1)
	v.Close()

	if _, err := v.Next(); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after Close error = %v, want ErrClosed", err)
	}
	if _, ok := <-events; ok {
		t.Error("subscription should be closed")
	}
	v.Close()
}

func TestGetStats(t *testing.T) {
	dir := tempDir(t)
	writePNG(t, filepath.Join(dir, "a.png"), 4, 4)
	v := newTestViewer(t, testConfig())
	open(t, v, dir)
	settle(t, v.GetDisplayImage, 0)

	s := v.GetStats()
	if s.ListingSize != 1 {
		t.Errorf("ListingSize = %d, want 1", s.ListingSize)
	}
	if s.CacheEntries == 0 || s.CacheBytes == 0 {
		t.Errorf("cache stats = %+v, want resident entries", s)
	}
}
