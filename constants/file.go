package constants

import "strings"

// Media types accepted for kiosk photos.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
	MediaTypeWebP = "image/webp"
	MediaTypeBMP  = "image/bmp"
	MediaTypeTIFF = "image/tiff"
	MediaTypeHEIC = "image/heic"
	MediaTypeHEIF = "image/heif"
)

// AllowedExtensions maps photo file extensions to their media type.
var AllowedExtensions = map[string]string{
	"jpg":  MediaTypeJPEG,
	"jpeg": MediaTypeJPEG,
	"png":  MediaTypePNG,
	"gif":  MediaTypeGIF,
	"webp": MediaTypeWebP,
	"bmp":  MediaTypeBMP,
	"tif":  MediaTypeTIFF,
	"tiff": MediaTypeTIFF,
	"heic": MediaTypeHEIC,
	"heif": MediaTypeHEIF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt returns the media type for a file extension, or "".
func MediaTypeForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsHEIF reports whether mediaType names a HEIC/HEIF container.
func IsHEIF(mediaType string) bool {
	return mediaType == MediaTypeHEIC || mediaType == MediaTypeHEIF
}
