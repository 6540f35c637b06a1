package pdscreen

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdscreen/pdscreen/utils"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when a file is not an image the decoders understand.
var ErrUnsupportedImage = errors.New("unsupported image type")

// SupportedExtensions lists the file extensions picked up from directories.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// LoadImage decodes an image, applying the EXIF orientation phones store in their photos.
func LoadImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode the image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("could not decode the image: empty %dx%d image", b.Dx(), b.Dy())
	}
	return img, nil
}

// OpenImage checks that the file exists and holds image content before decoding it.
func OpenImage(path string) (image.Image, error) {
	f, err := openImageFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadImage(f)
}

func openImageFile(path string) (*os.File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("image not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not an image", path)
	}

	ctype, err := utils.DetectContentType(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	if !utils.IsImageContent(ctype, path) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedImage, filepath.Base(path), ctype)
	}
	return os.Open(path)
}

// hasExtension checks the file extension case-insensitively.
func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
