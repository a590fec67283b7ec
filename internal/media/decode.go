package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"
	"sync"
	"time"

	"image-viewer/internal/filesystem"
	"image-viewer/internal/logging"
	"image-viewer/internal/metrics"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// DecodeFunc turns encoded bytes into an image. Implementations must be safe
// for concurrent use and must not retain data.
type DecodeFunc func(data []byte) (image.Image, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[Format]DecodeFunc{}
)

func init() {
	RegisterDecoder(FormatJPEG, func(data []byte) (image.Image, error) {
		return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	})
	RegisterDecoder(FormatPNG, readerDecoder(png.Decode))
	RegisterDecoder(FormatGIF, readerDecoder(gif.Decode))
	RegisterDecoder(FormatWebP, readerDecoder(webp.Decode))
	RegisterDecoder(FormatBMP, readerDecoder(bmp.Decode))
	RegisterDecoder(FormatTIFF, readerDecoder(tiff.Decode))
}

func readerDecoder(fn func(r io.Reader) (image.Image, error)) DecodeFunc {
	return func(data []byte) (image.Image, error) {
		return fn(bytes.NewReader(data))
	}
}

// RegisterDecoder installs fn for format f, replacing any previous decoder.
// Optional codecs (libvips) register themselves at startup.
func RegisterDecoder(f Format, fn DecodeFunc) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[f] = fn
}

// HasDecoder reports whether f can currently be decoded.
func HasDecoder(f Format) bool {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	_, ok := decoders[f]
	return ok
}

func decoderFor(f Format) DecodeFunc {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	return decoders[f]
}

// Decode produces a bitmap from encoded bytes. hint (usually from the file
// extension) is tried first; if it is wrong or missing, the format sniffed
// from the content is tried next.
//
// Returns ErrUnsupportedFormat when no registered decoder applies and
// ErrCorruptData when a decoder applied but failed.
func Decode(data []byte, hint Format) (*Bitmap, Format, error) {
	sniffed := Sniff(data)

	var candidates []Format
	if hint != FormatUnknown && hint != "" && HasDecoder(hint) {
		candidates = append(candidates, hint)
	}
	if sniffed != FormatUnknown && sniffed != hint && HasDecoder(sniffed) {
		candidates = append(candidates, sniffed)
	}

	if len(candidates) == 0 {
		detected := sniffed
		if detected == FormatUnknown {
			detected = hint
		}
		return nil, detected, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	var lastErr error
	for _, f := range candidates {
		start := time.Now()
		img, err := decodeSafely(decoderFor(f), data)
		if err != nil {
			logging.Debug("decode as %s failed after %v: %v", f, time.Since(start), err)
			lastErr = err
			continue
		}
		if f != hint && hint != FormatUnknown && hint != "" {
			logging.Debug("content is %s despite %s hint", f, hint)
		}
		metrics.DecodeByFormat.WithLabelValues(string(f)).Inc()
		return NewBitmap(img), f, nil
	}

	return nil, candidates[0], fmt.Errorf("%w: %w", ErrCorruptData, lastErr)
}

// decodeSafely converts decoder panics on hostile input into errors.
func decodeSafely(fn DecodeFunc, data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	img, err = fn(data)
	if err == nil && (img == nil || img.Bounds().Empty()) {
		err = fmt.Errorf("decoder returned an empty image")
	}
	return img, err
}

// DecodeFile reads path through the retrying filesystem layer and decodes it
// using the extension as the format hint. Read failures classify as ErrIO.
func DecodeFile(path string, retry filesystem.RetryConfig) (*Bitmap, Format, error) {
	hint := FormatFromPath(path)
	data, err := filesystem.ReadFileWithRetry(path, retry)
	if err != nil {
		return nil, hint, ioError(path, err)
	}
	return Decode(data, hint)
}
