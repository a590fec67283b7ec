package viewer

import (
	"image"
	"path/filepath"

	"image-viewer/internal/edit"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/workers"
)

// EditStatus describes the edit session, if any.
type EditStatus struct {
	Active bool   `json:"active"`
	Path   string `json:"path,omitempty"`
	State  string `json:"state"`
	Dirty  bool   `json:"dirty"`
	Depth  int    `json:"depth"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func (v *Viewer) editStatus() EditStatus {
	if v.session == nil {
		return EditStatus{State: edit.Clean.String()}
	}
	s := v.session
	return EditStatus{
		Active: true,
		Path:   s.Path(),
		State:  s.State().String(),
		Dirty:  s.Dirty(),
		Depth:  s.Depth(),
		Width:  s.Bitmap().Width(),
		Height: s.Bitmap().Height(),
	}
}

// EditStatus returns the current edit session state.
func (v *Viewer) EditStatus() (EditStatus, error) {
	var st EditStatus
	err := v.do(func() { st = v.editStatus() })
	return st, err
}

// BeginEdit opens an edit session on the focused image. The cached bitmap is
// pinned until the session ends. Returns ErrImageNotReady, after queueing
// the decode, if the image is not resident yet.
func (v *Viewer) BeginEdit() (EditStatus, error) {
	var st EditStatus
	var err error
	if derr := v.do(func() {
		err = v.beginEdit()
		st = v.editStatus()
	}); derr != nil {
		return st, derr
	}
	return st, err
}

func (v *Viewer) beginEdit() error {
	cur, ok := v.nav.Current()
	if !ok {
		return ErrNoDirectory
	}
	if v.session != nil && v.session.Path() == cur.Path {
		return nil
	}
	v.endSession()

	key := cur.Key(media.Full)
	bmp, release, ok := v.cache.Acquire(key)
	if !ok {
		if err := v.cache.Failure(key); err != nil {
			return err
		}
		v.track(v.pool.Submit(workers.Request{Key: key, Priority: workers.PriorityFocused, Epoch: v.cache.Epoch()}))
		return ErrImageNotReady
	}

	v.session = edit.New(cur.Path, key.ModTime, cur.Format, bmp)
	v.releaseEdit = release
	logging.Debug("Edit session opened for %s", cur.Path)
	v.publishEdit(OpBegin)
	return nil
}

// endSession drops the session and its cache pin without touching disk.
func (v *Viewer) endSession() {
	if v.releaseEdit != nil {
		v.releaseEdit()
	}
	v.session, v.releaseEdit = nil, nil
}

func (v *Viewer) publishEdit(op string) {
	ev := Event{Kind: EventEdit, Op: op, Version: v.nav.Version(), Index: v.nav.Index()}
	if v.session != nil {
		ev.Path = v.session.Path()
	}
	v.publish(ev)
}

// transform runs fn against the session, opening one on the focused image
// first when needed.
func (v *Viewer) transform(fn func(*edit.Session) error) (EditStatus, error) {
	var st EditStatus
	var err error
	if derr := v.do(func() {
		defer func() { st = v.editStatus() }()
		if v.session == nil {
			if err = v.beginEdit(); err != nil {
				return
			}
		}
		if err = fn(v.session); err != nil {
			return
		}
		v.publishEdit(OpTransform)
	}); derr != nil {
		return st, derr
	}
	return st, err
}

// Rotate90 rotates the focused image clockwise.
func (v *Viewer) Rotate90() (EditStatus, error) {
	return v.transform((*edit.Session).Rotate90)
}

// Rotate180 rotates the focused image by half a turn.
func (v *Viewer) Rotate180() (EditStatus, error) {
	return v.transform((*edit.Session).Rotate180)
}

// Rotate270 rotates the focused image counter-clockwise.
func (v *Viewer) Rotate270() (EditStatus, error) {
	return v.transform((*edit.Session).Rotate270)
}

// FlipH mirrors the focused image horizontally.
func (v *Viewer) FlipH() (EditStatus, error) {
	return v.transform((*edit.Session).FlipH)
}

// FlipV mirrors the focused image vertically.
func (v *Viewer) FlipV() (EditStatus, error) {
	return v.transform((*edit.Session).FlipV)
}

// Crop keeps rect of the focused image.
func (v *Viewer) Crop(rect image.Rectangle) (EditStatus, error) {
	return v.transform(func(s *edit.Session) error { return s.Crop(rect) })
}

// Undo reverses the most recent transform.
func (v *Viewer) Undo() (EditStatus, error) {
	var st EditStatus
	var err error
	if derr := v.do(func() {
		defer func() { st = v.editStatus() }()
		if v.session == nil {
			err = ErrNoSession
			return
		}
		if v.session.Undo() {
			v.publishEdit(OpUndo)
		}
	}); derr != nil {
		return st, derr
	}
	return st, err
}

// Discard drops the working copy.
func (v *Viewer) Discard() (EditStatus, error) {
	var st EditStatus
	var err error
	if derr := v.do(func() {
		defer func() { st = v.editStatus() }()
		if v.session == nil {
			err = ErrNoSession
			return
		}
		v.session.Discard()
		v.publishEdit(OpDiscard)
		v.endSession()
	}); derr != nil {
		return st, derr
	}
	return st, err
}

// Save writes the working bitmap over the source file.
func (v *Viewer) Save() (EditStatus, error) {
	return v.save("")
}

// SaveAs writes the working bitmap to path.
func (v *Viewer) SaveAs(path string) (EditStatus, error) {
	return v.save(path)
}

func (v *Viewer) save(target string) (EditStatus, error) {
	var st EditStatus
	var err error
	if derr := v.do(func() {
		defer func() { st = v.editStatus() }()
		if v.session == nil {
			err = ErrNoSession
			return
		}
		if target == "" {
			target = v.session.Path()
		} else if target, err = filepath.Abs(target); err != nil {
			return
		}
		err = v.commitSave(target)
	}); derr != nil {
		return st, derr
	}
	return st, err
}

// commitSave writes the session to target, then refreshes the listing entry
// and seeds the cache with the saved pixels under the file's new mtime so
// the next display does not decode again.
func (v *Viewer) commitSave(target string) error {
	bmp := v.session.Bitmap()
	if err := v.session.SaveAs(target); err != nil {
		return err
	}

	v.publishEdit(OpSave)
	v.endSession()

	v.cache.Invalidate(target)
	entry, ok, err := v.scanner.EntryFor(target, v.cfg.ShowHidden)
	if err != nil || !ok {
		logging.Warn("Saved %s but it is not listable here (err=%v)", target, err)
		return nil
	}
	v.cache.Put(entry.Key(media.Full), bmp, v.cache.Epoch())
	if filepath.Dir(target) == v.nav.Listing().Dir {
		v.place(entry)
	}
	return nil
}
