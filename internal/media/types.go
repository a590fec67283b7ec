package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an image encoding.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatHEIF    Format = "heif"
	FormatAVIF    Format = "avif"
	FormatJXL     Format = "jxl"
	FormatUnknown Format = "unknown"
)

// AllFormats lists every known format in display order.
var AllFormats = []Format{
	FormatJPEG, FormatPNG, FormatGIF, FormatWebP, FormatBMP,
	FormatTIFF, FormatHEIF, FormatAVIF, FormatJXL,
}

// ImageExtensions maps recognized file extensions to the format they usually hold.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".jpe":  FormatJPEG,
	".jfif": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".webp": FormatWebP,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".heic": FormatHEIF,
	".heif": FormatHEIF,
	".avif": FormatAVIF,
	".jxl":  FormatJXL,
}

// FormatFromPath returns the format suggested by the file extension, or
// FormatUnknown. The result is only a hint.
func FormatFromPath(path string) Format {
	if f, ok := ImageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return FormatUnknown
}

// ImageEntry is a single displayable file in a directory listing.
type ImageEntry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	Format  Format    `json:"format"`
}

// Key returns the cache key of this entry at the given resolution.
func (e ImageEntry) Key(res Resolution) CacheKey {
	return CacheKey{Path: e.Path, ModTime: e.ModTime.UnixNano(), Resolution: res}
}

// SortField specifies which field to sort by.
type SortField string

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	// SortByName sorts results by filename.
	SortByName SortField = "name"
	// SortByDate sorts results by modification time.
	SortByDate SortField = "date"
	// SortBySize sorts results by file size.
	SortBySize SortField = "size"
	// SortAsc sorts in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortOrder = "desc"
)

// ParseSortField validates a sort field name.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByName, SortByDate, SortBySize:
		return f, nil
	case "":
		return SortByName, nil
	default:
		return "", fmt.Errorf("invalid sort field %q (want name, date or size)", s)
	}
}

// ParseSortOrder validates a sort direction.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortAsc, SortDesc:
		return o, nil
	case "":
		return SortAsc, nil
	default:
		return "", fmt.Errorf("invalid sort order %q (want asc or desc)", s)
	}
}

// Resolution is the class of a decoded artifact.
type Resolution string

const (
	Thumbnail Resolution = "thumbnail"
	Full      Resolution = "full"
)

// CacheKey identifies a decoded artifact. ModTime is part of the identity so
// a file rewritten in place never resolves to its previous pixels.
type CacheKey struct {
	Path       string
	ModTime    int64
	Resolution Resolution
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%d/%s", k.Path, k.ModTime, k.Resolution)
}
