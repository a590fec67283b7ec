package media

import (
	"github.com/disintegration/imaging"
)

// DefaultThumbnailSize is the longest edge of a thumbnail in pixels.
const DefaultThumbnailSize = 256

// ThumbnailSizes lists the sizes offered to users.
var ThumbnailSizes = []int{128, 256, 512}

// GenerateThumbnail fits b inside a size x size box with Lanczos resampling,
// preserving aspect ratio. Images already inside the box are returned as is.
func GenerateThumbnail(b *Bitmap, size int) *Bitmap {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	if b.Width() <= size && b.Height() <= size {
		return b
	}
	return NewBitmap(imaging.Fit(b.Image(), size, size, imaging.Lanczos))
}
