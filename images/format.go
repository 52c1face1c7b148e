package images

import "bytes"

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatWebP    ImageFormat = "webp"
	FormatPNG     ImageFormat = "png"
	FormatBMP     ImageFormat = "bmp"
	FormatTIFF    ImageFormat = "tiff"
	FormatUnknown ImageFormat = ""
)

// DetectFormat sniffs the container format from the leading magic bytes.
//
// Arguments:
// - data: The raw upload bytes.
//
// Returns:
// - The detected ImageFormat, or FormatUnknown.
//
// @example
// format := DetectFormat(pngBytes) // FormatPNG
func DetectFormat(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	}
	return FormatUnknown
}
