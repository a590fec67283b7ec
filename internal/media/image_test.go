package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// gradient returns an image with a gradient pattern so resizes are observable
func gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// encodeTestImage encodes a gradient in the given format
func encodeTestImage(t testing.TB, width, height int, format string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, gradient(width, height), &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, gradient(width, height))
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// createTestImage writes a gradient test image to path
func createTestImage(t testing.TB, path string, width, height int, format string) {
	t.Helper()
	if err := os.WriteFile(path, encodeTestImage(t, width, height, format), 0o644); err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
}

func TestGetImageDimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		format string
	}{
		{"small PNG", 100, 50, "png"},
		{"square JPEG", 64, 64, "jpeg"},
		{"portrait JPEG", 30, 90, "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims, err := GetImageDimensions(encodeTestImage(t, tt.width, tt.height, tt.format))
			if err != nil {
				t.Fatalf("GetImageDimensions() error = %v", err)
			}
			if dims.Width != tt.width || dims.Height != tt.height {
				t.Errorf("dimensions = %dx%d, want %dx%d", dims.Width, dims.Height, tt.width, tt.height)
			}
		})
	}
}

func TestGetImageDimensionsErrors(t *testing.T) {
	if _, err := GetImageDimensions([]byte("not an image")); err == nil {
		t.Error("GetImageDimensions() expected error for garbage input")
	}
	if _, err := GetImageDimensions(nil); err == nil {
		t.Error("GetImageDimensions() expected error for empty input")
	}
}

func TestConstrain(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		height    int
		maxPixels int
		unchanged bool
	}{
		{"disabled", 400, 300, 0, true},
		{"within limit", 400, 300, 120_000, true},
		{"over limit landscape", 400, 300, 30_000, false},
		{"over limit portrait", 100, 800, 10_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewBitmap(gradient(tt.width, tt.height))
			got := Constrain(src, tt.maxPixels)

			if tt.unchanged {
				if got != src {
					t.Error("Constrain() should return the input unchanged")
				}
				return
			}

			if got.Width()*got.Height() > tt.maxPixels {
				t.Errorf("Constrain() = %dx%d, exceeds %d pixels", got.Width(), got.Height(), tt.maxPixels)
			}
			srcRatio := float64(tt.width) / float64(tt.height)
			gotRatio := float64(got.Width()) / float64(got.Height())
			if diff := srcRatio - gotRatio; diff > 0.05*srcRatio || diff < -0.05*srcRatio {
				t.Errorf("aspect ratio %.3f, want ~%.3f", gotRatio, srcRatio)
			}
		})
	}
}

func TestGenerateThumbnail(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		size          int
		wantW, wantH  int
	}{
		{"landscape", 1000, 500, 256, 256, 128},
		{"portrait", 300, 900, 150, 50, 150},
		{"already small", 100, 80, 256, 100, 80},
		{"zero size uses default", 1024, 1024, 0, DefaultThumbnailSize, DefaultThumbnailSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thumb := GenerateThumbnail(NewBitmap(gradient(tt.width, tt.height)), tt.size)
			if thumb.Width() != tt.wantW || thumb.Height() != tt.wantH {
				t.Errorf("GenerateThumbnail() = %dx%d, want %dx%d", thumb.Width(), thumb.Height(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestBitmap(t *testing.T) {
	src := gradient(10, 4)
	b := NewBitmap(src)

	if b.Image() != src {
		t.Error("NewBitmap should adopt a normalized NRGBA without copying")
	}
	if b.Width() != 10 || b.Height() != 4 {
		t.Errorf("size = %dx%d, want 10x4", b.Width(), b.Height())
	}
	if b.ByteSize() != 10*4*4 {
		t.Errorf("ByteSize() = %d, want %d", b.ByteSize(), 10*4*4)
	}

	c := b.Clone()
	if !c.Equal(b) {
		t.Error("Clone() should be Equal to the source")
	}
	c.Image().Pix[0] ^= 0xFF
	if c.Equal(b) {
		t.Error("mutating the clone must not affect the source")
	}

	rgba := image.NewRGBA(image.Rect(5, 5, 8, 9))
	converted := NewBitmap(rgba)
	if converted.Width() != 3 || converted.Height() != 4 {
		t.Errorf("converted size = %dx%d, want 3x4", converted.Width(), converted.Height())
	}
	if converted.Image().Rect.Min != (image.Point{}) {
		t.Errorf("converted origin = %v, want zero", converted.Image().Rect.Min)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/a/b.JPG", FormatJPEG},
		{"/a/b.jpeg", FormatJPEG},
		{"x.png", FormatPNG},
		{"x.HEIC", FormatHEIF},
		{"x.tif", FormatTIFF},
		{"x.xyz", FormatUnknown},
		{"noext", FormatUnknown},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseSort(t *testing.T) {
	if f, err := ParseSortField("Date"); err != nil || f != SortByDate {
		t.Errorf("ParseSortField(Date) = %q, %v", f, err)
	}
	if f, err := ParseSortField(""); err != nil || f != SortByName {
		t.Errorf("ParseSortField(\"\") = %q, %v, want name default", f, err)
	}
	if _, err := ParseSortField("type"); err == nil {
		t.Error("ParseSortField(type) expected error")
	}
	if o, err := ParseSortOrder("DESC"); err != nil || o != SortDesc {
		t.Errorf("ParseSortOrder(DESC) = %q, %v", o, err)
	}
	if _, err := ParseSortOrder("up"); err == nil {
		t.Error("ParseSortOrder(up) expected error")
	}
}

func TestCacheKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	e := ImageEntry{Path: path}

	full, thumb := e.Key(Full), e.Key(Thumbnail)
	if full == thumb {
		t.Error("keys for different resolutions must differ")
	}
	if full.Path != path || thumb.Path != path {
		t.Error("keys should carry the entry path")
	}
	if full.String() == "" {
		t.Error("String() should not be empty")
	}
}

func BenchmarkGenerateThumbnail(b *testing.B) {
	src := NewBitmap(gradient(1920, 1080))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GenerateThumbnail(src, DefaultThumbnailSize)
	}
}
