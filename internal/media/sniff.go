package media

import "bytes"

// SniffLen is the number of leading bytes Sniff needs to recognize every
// supported format.
const SniffLen = 32

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jxlBox    = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A}
	heifBrand = map[string]bool{"heic": true, "heix": true, "hevc": true, "hevx": true, "mif1": true, "msf1": true}
	avifBrand = map[string]bool{"avif": true, "avis": true}
)

// Sniff identifies the format from magic bytes, independent of the file name.
func Sniff(header []byte) Format {
	h := header
	switch {
	case len(h) >= 3 && h[0] == 0xFF && h[1] == 0xD8 && h[2] == 0xFF:
		return FormatJPEG

	case bytes.HasPrefix(h, pngMagic):
		return FormatPNG

	case bytes.HasPrefix(h, []byte("GIF87a")) || bytes.HasPrefix(h, []byte("GIF89a")):
		return FormatGIF

	case len(h) >= 12 && bytes.Equal(h[0:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WEBP")):
		return FormatWebP

	case len(h) >= 2 && h[0] == 'B' && h[1] == 'M':
		return FormatBMP

	case bytes.HasPrefix(h, []byte{'I', 'I', 0x2A, 0x00}) || bytes.HasPrefix(h, []byte{'M', 'M', 0x00, 0x2A}):
		return FormatTIFF

	case len(h) >= 12 && bytes.Equal(h[4:8], []byte("ftyp")):
		brand := string(h[8:12])
		if heifBrand[brand] {
			return FormatHEIF
		}
		if avifBrand[brand] {
			return FormatAVIF
		}

	case len(h) >= 2 && h[0] == 0xFF && h[1] == 0x0A:
		return FormatJXL

	case bytes.HasPrefix(h, jxlBox):
		return FormatJXL
	}

	return FormatUnknown
}
