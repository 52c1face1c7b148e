package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents a register photograph read from disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file, used as the report filename.
	Name string
	// Data is the raw bytes of the image file.
	Data []byte
}

// imageExtensions are the upload formats images.Decode accepts.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing register photographs. Subdirectories are skipped.
//
// Returns:
// - []ImageFile: The images sorted by file name.
// - error: Error if the directory or a file cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading image %s", path)
		}
		files = append(files, ImageFile{Path: path, Name: entry.Name(), Data: data})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}
