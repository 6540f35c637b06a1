package pdscreen

import (
	"image"

	"github.com/disintegration/imaging"
)

// Fixed point BT.601 luma weights (scaled by 2^14), the same ones OpenCV uses
// for its RGB to gray conversion.
const (
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaShift = 14
	lumaRound = 1 << (lumaShift - 1)
)

// Grayscale converts the image to an 8 bit luminance image with its origin at (0, 0).
// Alpha is ignored: transparent pixels keep the luminance of their color channels.
func Grayscale(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	nrgba := imaging.Clone(src)
	dx, dy := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	for y := 0; y < dy; y++ {
		si := y * nrgba.Stride
		di := y * dst.Stride
		for x := 0; x < dx; x++ {
			r := uint32(nrgba.Pix[si])
			g := uint32(nrgba.Pix[si+1])
			b := uint32(nrgba.Pix[si+2])
			dst.Pix[di] = uint8((r*lumaR + g*lumaG + b*lumaB + lumaRound) >> lumaShift)
			si += 4
			di++
		}
	}
	return dst
}
