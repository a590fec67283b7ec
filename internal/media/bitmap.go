package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// Bitmap is a decoded, uncompressed NRGBA pixel buffer. A Bitmap handed out
// by the cache is a shared read-only view: callers that need to modify pixels
// must Clone first.
type Bitmap struct {
	img *image.NRGBA
}

// NewBitmap converts img to NRGBA with a zero origin. An *image.NRGBA that is
// already normalized is adopted without copying.
func NewBitmap(img image.Image) *Bitmap {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return &Bitmap{img: n}
	}
	return &Bitmap{img: imaging.Clone(img)}
}

// Width in pixels.
func (b *Bitmap) Width() int { return b.img.Rect.Dx() }

// Height in pixels.
func (b *Bitmap) Height() int { return b.img.Rect.Dy() }

// ByteSize is the resident size of the pixel buffer.
func (b *Bitmap) ByteSize() int64 { return int64(len(b.img.Pix)) }

// Image exposes the pixels as an image.Image. Do not mutate.
func (b *Bitmap) Image() *image.NRGBA { return b.img }

// Clone returns a deep copy that may be mutated freely.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{img: imaging.Clone(b.img)}
}

// Equal reports whether both bitmaps have identical dimensions and pixels.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.img.Rect.Eq(o.img.Rect) && bytes.Equal(b.img.Pix, o.img.Pix)
}
