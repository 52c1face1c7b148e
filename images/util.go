package images

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat to verify idempotency.
//
// Arguments:
// - mat: The Mat to compute checksum for. It must be continuous (not a Region view).
//
// Returns:
// - A hex-encoded MD5 checksum string over the pixel bytes and the dimensions.
//
// Example:
//
// ```go
//
//	checksum := ComputeMatChecksum(cell.Image)
//	fmt.Printf("Cell checksum: %s\n", checksum)
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, _ := mat.DataPtrUint8()
	hash := md5.New()
	fmt.Fprintf(hash, "%dx%dx%d:", mat.Cols(), mat.Rows(), mat.Channels())
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// Encode encodes a Mat into the given container format.
//
// Arguments:
//   - format: FormatPNG or FormatJPEG.
//   - mat: The image to encode.
//
// Returns:
//   - []byte: The encoded bytes, owned by the caller.
//   - error: An error if the format is unsupported or encoding fails.
func Encode(format ImageFormat, mat gocv.Mat) ([]byte, error) {
	var ext gocv.FileExt
	switch format {
	case FormatPNG:
		ext = gocv.PNGFileExt
	case FormatJPEG:
		ext = gocv.JPEGFileExt
	default:
		return nil, errors.Errorf("unsupported encode format %q", format)
	}

	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", format)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close releases.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// EncodeBase64JPEG encodes a Mat as a base64 JPEG string for JSON payloads.
func EncodeBase64JPEG(mat gocv.Mat) (string, error) {
	data, err := Encode(FormatJPEG, mat)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
