package pdscreen

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// drawSpiral renders a dark archimedean spiral on white paper. A positive
// tremor adds seeded radial noise to the stroke.
func drawSpiral(size int, tremor float64, seed int64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	rnd := rand.New(rand.NewSource(seed))
	c := float64(size) / 2
	turns := 3.0
	maxR := c * 0.9

	for t := 0.0; t < turns*2*math.Pi; t += 0.005 {
		r := maxR * t / (turns * 2 * math.Pi)
		if tremor > 0 {
			r += (rnd.Float64()*2 - 1) * tremor
		}
		x := int(c + r*math.Cos(t))
		y := int(c + r*math.Sin(t))
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if image.Pt(x+dx, y+dy).In(img.Rect) {
					img.SetNRGBA(x+dx, y+dy, color.NRGBA{R: 20, G: 20, B: 30, A: 0xff})
				}
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, encodePNG(t, img), 0644))
}

func uniform(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
