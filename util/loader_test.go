package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"week-2.png":  "png bytes",
		"week-1.JPG":  "jpeg bytes",
		"notes.txt":   "not an image",
		"week-3.webp": "webp bytes",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.png"), 0o700))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "week-1.JPG", files[0].Name)
	assert.Equal(t, "week-2.png", files[1].Name)
	assert.Equal(t, "week-3.webp", files[2].Name)
	assert.Equal(t, []byte("png bytes"), files[1].Data)
	assert.Equal(t, filepath.Join(dir, "week-2.png"), files[1].Path)
}

func TestLoadDirectoryImagesMissingDir(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.TIFF"))
	assert.True(t, IsImageFile("scan.jpeg"))
	assert.False(t, IsImageFile("scan.pdf"))
	assert.False(t, IsImageFile("README"))
}
