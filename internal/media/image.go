package media

import (
	"bytes"
	"image"
	"math"

	"image-viewer/internal/logging"

	"github.com/disintegration/imaging"
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions reads only the header of encoded data. Formats without a
// registered image.DecodeConfig (libvips codecs) report an error.
func GetImageDimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// Constrain downscales b so that width*height does not exceed maxPixels,
// preserving aspect ratio. maxPixels <= 0 disables the limit. This prevents
// a single huge photo from consuming the whole cache budget.
func Constrain(b *Bitmap, maxPixels int) *Bitmap {
	if maxPixels <= 0 {
		return b
	}

	width, height := b.Width(), b.Height()
	pixels := width * height
	if pixels <= maxPixels {
		return b
	}

	scale := math.Sqrt(float64(maxPixels) / float64(pixels))
	targetWidth := max(1, int(float64(width)*scale))
	targetHeight := max(1, int(float64(height)*scale))

	logging.Info("Constraining large image from %dx%d to %dx%d", width, height, targetWidth, targetHeight)

	return NewBitmap(imaging.Resize(b.Image(), targetWidth, targetHeight, imaging.Lanczos))
}
