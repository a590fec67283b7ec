package edit

import (
	"errors"
	"fmt"
	"image"
	"io"

	"image-viewer/internal/filesystem"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when saving JPEG files.
const DefaultJPEGQuality = 95

// ErrSessionClosed is returned by a session that was saved or discarded.
var ErrSessionClosed = errors.New("edit session closed")

// State is the lifecycle of a Session.
type State int

const (
	// Clean means the working bitmap equals the original.
	Clean State = iota
	// Editing means at least one transform is applied and unsaved.
	Editing
	// Saved means the working bitmap was written; the session is closed.
	Saved
	// Discarded means the working copy was dropped; the session is closed.
	Discarded
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Editing:
		return "editing"
	case Saved:
		return "saved"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Kind names a transform.
type Kind string

const (
	// Rotate90 rotates clockwise by 90 degrees.
	Rotate90  Kind = "rotate90"
	Rotate180 Kind = "rotate180"
	Rotate270 Kind = "rotate270"
	FlipH     Kind = "flip_h"
	FlipV     Kind = "flip_v"
	Crop      Kind = "crop"
)

// Transform is one applied edit. Rotations and flips are undone by their
// inverse; a crop keeps the bitmap it replaced.
type Transform struct {
	Kind Kind
	Rect image.Rectangle

	prior *media.Bitmap
}

// Inverse returns the kind that reverses k, or "" for Crop.
func (k Kind) Inverse() Kind {
	switch k {
	case Rotate90:
		return Rotate270
	case Rotate270:
		return Rotate90
	case Rotate180, FlipH, FlipV:
		return k
	default:
		return ""
	}
}

// apply returns the transformed image for geometric kinds. imaging rotates
// counter-clockwise, hence the swapped 90/270.
func apply(k Kind, img image.Image) *image.NRGBA {
	switch k {
	case Rotate90:
		return imaging.Rotate270(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case Rotate270:
		return imaging.Rotate90(img)
	case FlipH:
		return imaging.FlipH(img)
	case FlipV:
		return imaging.FlipV(img)
	default:
		return nil
	}
}

// Session is the transform stack for one image. It is not safe for
// concurrent use.
type Session struct {
	path     string
	modTime  int64
	format   media.Format
	original *media.Bitmap
	working  *media.Bitmap
	undo     []Transform
	state    State
}

// New starts a clean session over bmp, which is never modified. modTime is
// the source file's modification time, kept so the caller can tell whether
// the file changed underneath the session.
func New(path string, modTime int64, format media.Format, bmp *media.Bitmap) *Session {
	return &Session{
		path:     path,
		modTime:  modTime,
		format:   format,
		original: bmp,
		working:  bmp,
	}
}

// Path returns the source file path.
func (s *Session) Path() string { return s.path }

// ModTime returns the source modification time the session started from.
func (s *Session) ModTime() int64 { return s.modTime }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Dirty reports whether unsaved transforms are applied.
func (s *Session) Dirty() bool { return s.state == Editing && len(s.undo) > 0 }

// Bitmap returns the working bitmap.
func (s *Session) Bitmap() *media.Bitmap { return s.working }

// Original returns the bitmap the session started from.
func (s *Session) Original() *media.Bitmap { return s.original }

// History returns the applied transforms, oldest first.
func (s *Session) History() []Transform {
	return append([]Transform(nil), s.undo...)
}

// Depth returns the number of undoable transforms.
func (s *Session) Depth() int { return len(s.undo) }

func (s *Session) open() error {
	if s.state == Saved || s.state == Discarded {
		return ErrSessionClosed
	}
	return nil
}

// Apply runs a rotation or flip.
func (s *Session) Apply(k Kind) error {
	if err := s.open(); err != nil {
		return err
	}
	img := apply(k, s.working.Image())
	if img == nil {
		return fmt.Errorf("unknown transform %q", k)
	}
	s.push(Transform{Kind: k}, media.NewBitmap(img))
	return nil
}

// Rotate90 rotates clockwise.
func (s *Session) Rotate90() error { return s.Apply(Rotate90) }

// Rotate180 rotates by half a turn.
func (s *Session) Rotate180() error { return s.Apply(Rotate180) }

// Rotate270 rotates counter-clockwise.
func (s *Session) Rotate270() error { return s.Apply(Rotate270) }

// FlipH mirrors left to right.
func (s *Session) FlipH() error { return s.Apply(FlipH) }

// FlipV mirrors top to bottom.
func (s *Session) FlipV() error { return s.Apply(FlipV) }

// Crop keeps rect of the working bitmap. rect must be non-empty and inside
// the current bounds; it is never clamped.
func (s *Session) Crop(rect image.Rectangle) error {
	if err := s.open(); err != nil {
		return err
	}
	bounds := image.Rect(0, 0, s.working.Width(), s.working.Height())
	if rect.Empty() || !rect.In(bounds) {
		metrics.EditOperationsTotal.WithLabelValues(string(Crop), "error").Inc()
		return fmt.Errorf("%w: %v not within %v", media.ErrInvalidCropRegion, rect, bounds)
	}
	img := imaging.Crop(s.working.Image(), rect)
	s.push(Transform{Kind: Crop, Rect: rect, prior: s.working}, media.NewBitmap(img))
	return nil
}

func (s *Session) push(t Transform, next *media.Bitmap) {
	s.undo = append(s.undo, t)
	s.working = next
	s.state = Editing
	metrics.EditOperationsTotal.WithLabelValues(string(t.Kind), "success").Inc()
}

// Undo reverses the most recent transform and reports whether there was
// one. Undoing the last transform restores the original bitmap and returns
// the session to Clean.
func (s *Session) Undo() bool {
	if s.open() != nil || len(s.undo) == 0 {
		return false
	}
	t := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	if len(s.undo) == 0 {
		s.working = s.original
		s.state = Clean
	} else if t.Kind == Crop {
		s.working = t.prior
	} else {
		s.working = media.NewBitmap(apply(t.Kind.Inverse(), s.working.Image()))
	}
	metrics.EditOperationsTotal.WithLabelValues("undo", "success").Inc()
	return true
}

// Save writes the working bitmap over the source file.
func (s *Session) Save() error { return s.SaveAs(s.path) }

// SaveAs writes the working bitmap to path, encoded by path's extension (or
// the source format when the extension is unknown). The write is atomic. On
// failure the session is left unchanged.
func (s *Session) SaveAs(path string) error {
	if err := s.open(); err != nil {
		return err
	}

	format := media.FormatFromPath(path)
	if format == media.FormatUnknown {
		format = s.format
	}
	enc, err := encoderFor(format)
	if err != nil {
		metrics.EditOperationsTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("%w: %s: %w", media.ErrSaveFailed, path, err)
	}

	img := s.working.Image()
	if err := filesystem.WriteFileAtomic(path, func(w io.Writer) error {
		return enc(w, img)
	}); err != nil {
		metrics.EditOperationsTotal.WithLabelValues("save", "error").Inc()
		logging.Error("Failed to save %s: %v", path, err)
		return fmt.Errorf("%w: %s: %w", media.ErrSaveFailed, path, err)
	}

	logging.Info("Saved %s (%d transforms, %dx%d)", path, len(s.undo), s.working.Width(), s.working.Height())
	metrics.EditOperationsTotal.WithLabelValues("save", "success").Inc()
	s.state = Saved
	s.undo = nil
	return nil
}

// Discard drops the working copy and closes the session.
func (s *Session) Discard() {
	if s.open() != nil {
		return
	}
	s.working = s.original
	s.undo = nil
	s.state = Discarded
	metrics.EditOperationsTotal.WithLabelValues("discard", "success").Inc()
}

func encoderFor(f media.Format) (imgio.Encoder, error) {
	switch f {
	case media.FormatJPEG:
		return imgio.JPEGEncoder(DefaultJPEGQuality), nil
	case media.FormatPNG:
		return imgio.PNGEncoder(), nil
	case media.FormatBMP:
		return imgio.BMPEncoder(), nil
	case media.FormatTIFF:
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	default:
		return nil, fmt.Errorf("no encoder for %s", f)
	}
}

// CanSave reports whether files of format f can be written.
func CanSave(f media.Format) bool {
	_, err := encoderFor(f)
	return err == nil
}
