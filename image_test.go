package pdscreen

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestImage_LoadImage(t *testing.T) {
	src := drawSpiral(64, 0, 1)
	img, err := LoadImage(bytes.NewReader(encodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())

	_, err = LoadImage(strings.NewReader("definitely not an image"))
	assert.Error(t, err)
}

func TestImage_LoadBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, uniform(8, 6, color.White)))

	img, err := LoadImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestImage_OpenImage(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))
	_, err = OpenImage(txt)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = OpenImage(dir)
	assert.Error(t, err)

	path := filepath.Join(dir, "spiral.png")
	writePNG(t, path, drawSpiral(50, 0, 1))
	img, err := OpenImage(path)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
}

func TestImage_HasExtension(t *testing.T) {
	assert.True(t, hasExtension("a/b/c.PNG", SupportedExtensions))
	assert.True(t, hasExtension("c.jpeg", SupportedExtensions))
	assert.True(t, hasExtension("c.tiff", SupportedExtensions))
	assert.False(t, hasExtension("c.txt", SupportedExtensions))
	assert.False(t, hasExtension("png", SupportedExtensions))
}
