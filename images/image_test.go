package images

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-register/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

// checkerboard builds a small Go image with a recognizable pattern.
func checkerboard(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want ImageFormat
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FormatJPEG},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00"), FormatPNG},
		{"bmp", []byte("BM\x00\x00"), FormatBMP},
		{"tiff little endian", []byte("II*\x00\x08"), FormatTIFF},
		{"tiff big endian", []byte("MM\x00*\x00"), FormatTIFF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWebP},
		{"riff but not webp", []byte("RIFF\x00\x00\x00\x00WAVE"), FormatUnknown},
		{"text", []byte("hello"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFormat(tc.data))
		})
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("this is not an image"),
		"truncated": []byte("\x89PNG\r\n\x1a\n"),
		"bad webp":  []byte("RIFF\x00\x00\x00\x00WEBPVP8 junk"),
		"bad tiff":  []byte("II*\x00junk"),
	} {
		t.Run(name, func(t *testing.T) {
			mat, err := Decode(data)
			defer mat.Close()

			var invalid *common.InvalidImageError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.True(t, mat.Empty())
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer src.Close()

	data, err := Encode(FormatPNG, src)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, DetectFormat(data))

	decoded, err := Decode(data)
	require.NoError(t, err)
	defer decoded.Close()

	assert.Equal(t, ComputeMatChecksum(src), ComputeMatChecksum(decoded))

	jpeg, err := Encode(FormatJPEG, src)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, DetectFormat(jpeg))

	_, err = Encode(FormatWebP, src)
	assert.Error(t, err)
}

func TestDecodeGoFormats(t *testing.T) {
	src := checkerboard(32, 24)

	var tiffBuf bytes.Buffer
	require.NoError(t, tiff.Encode(&tiffBuf, src, nil))

	var webpBuf bytes.Buffer
	require.NoError(t, webp.Encode(&webpBuf, src, &webp.Options{Lossless: true}))

	for name, data := range map[string][]byte{"tiff": tiffBuf.Bytes(), "webp": webpBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			mat, err := Decode(data)
			require.NoError(t, err)
			defer mat.Close()

			assert.Equal(t, 32, mat.Cols())
			assert.Equal(t, 24, mat.Rows())
			assert.Equal(t, 3, mat.Channels())
			assert.Equal(t, uint8(0), mat.GetUCharAt(0, 0))
			assert.Equal(t, uint8(255), mat.GetUCharAt(0, 8*3))
		})
	}
}

func TestFit(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 300, 800, gocv.MatTypeCV8UC3)
	defer src.Close()

	testCases := []struct {
		name          string
		maxDim        int
		width, height int
	}{
		{"disabled", 0, 800, 300},
		{"already within bounds", 1000, 800, 300},
		{"downscale wide image", 400, 400, 150},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Fit(src, tc.maxDim)
			require.NoError(t, err)
			defer out.Close()
			assert.Equal(t, tc.width, out.Cols())
			assert.Equal(t, tc.height, out.Rows())
		})
	}
}

func TestComputeMatChecksum(t *testing.T) {
	a := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := a.Clone()
	defer b.Close()
	c := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 10, 20, gocv.MatTypeCV8UC3)
	defer c.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	assert.Equal(t, ComputeMatChecksum(a), ComputeMatChecksum(b))
	assert.NotEqual(t, ComputeMatChecksum(a), ComputeMatChecksum(c))
	assert.Equal(t, "empty", ComputeMatChecksum(empty))

	b.SetUCharAt(0, 0, 9)
	assert.NotEqual(t, ComputeMatChecksum(a), ComputeMatChecksum(b))
}

func TestEncodeBase64JPEG(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer src.Close()

	encoded, err := EncodeBase64JPEG(src)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
	assert.Equal(t, "/9j/", encoded[:4])
}
