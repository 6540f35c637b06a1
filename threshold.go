package pdscreen

import (
	"image"
	"math"
)

// fltEpsilon is the single precision machine epsilon; class weights closer
// than this to 0 or 1 are ignored when searching the Otsu threshold.
const fltEpsilon = 1.1920928955078125e-07

// OtsuThreshold returns the gray level maximising the between-class variance
// of the image histogram. The first maximum wins on ties.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}

	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	scale := 1 / float64(n)

	var mu float64
	for i, h := range hist {
		mu += float64(i) * float64(h)
	}
	mu *= scale

	var (
		q1, mu1  float64
		maxSigma float64
		maxVal   int
	)
	for i := 0; i < len(hist); i++ {
		pi := float64(hist[i]) * scale
		mu1 *= q1
		q1 += pi
		q2 := 1 - q1

		if math.Min(q1, q2) < fltEpsilon || math.Max(q1, q2) > 1-fltEpsilon {
			continue
		}
		mu1 = (mu1 + float64(i)*pi) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			maxVal = i
		}
	}
	return uint8(maxVal)
}

// ThresholdBinaryInv maps pixels above the threshold to 0 and the rest to 255,
// turning dark pen strokes on light paper into white strokes on black.
func ThresholdBinaryInv(src *image.Gray, threshold uint8) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			if src.Pix[si+x] <= threshold {
				dst.Pix[di+x] = 255
			}
		}
	}
	return dst
}
