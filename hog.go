package pdscreen

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// HOG configures the histogram of oriented gradients descriptor.
type HOG struct {
	Orientations  int
	PixelsPerCell int
	CellsPerBlock int
	// TransformSqrt applies square root gamma compression before taking gradients.
	TransformSqrt bool
}

// hogEpsilon keeps the L1 block normalisation finite on empty blocks.
const hogEpsilon = 1e-5

// DefaultHOG is the descriptor used by the drawing models.
var DefaultHOG = HOG{
	Orientations:  9,
	PixelsPerCell: 10,
	CellsPerBlock: 2,
	TransformSqrt: true,
}

// Len returns the descriptor length for an image of the given size.
func (h HOG) Len(width, height int) int {
	bx := width/h.PixelsPerCell - h.CellsPerBlock + 1
	by := height/h.PixelsPerCell - h.CellsPerBlock + 1
	if bx <= 0 || by <= 0 {
		return 0
	}
	return by * bx * h.CellsPerBlock * h.CellsPerBlock * h.Orientations
}

// Describe computes the descriptor of a grayscale image.
// The vector is laid out by block row, block column, cell row, cell column and orientation.
func (h HOG) Describe(img *image.Gray) ([]float64, error) {
	if h.Orientations <= 0 || h.PixelsPerCell <= 0 || h.CellsPerBlock <= 0 {
		return nil, fmt.Errorf("invalid HOG parameters: %+v", h)
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	cellsX, cellsY := width/h.PixelsPerCell, height/h.PixelsPerCell
	if cellsX < h.CellsPerBlock || cellsY < h.CellsPerBlock {
		return nil, fmt.Errorf("image %dx%d is too small for %dx%d pixel cells in %dx%d blocks",
			width, height, h.PixelsPerCell, h.PixelsPerCell, h.CellsPerBlock, h.CellsPerBlock)
	}

	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < width; x++ {
			v := float64(row[x])
			if h.TransformSqrt {
				v = math.Sqrt(v)
			}
			lum[y*width+x] = v
		}
	}

	hist := h.cellHistograms(lum, width, height, cellsX, cellsY)
	return h.normalizeBlocks(hist, cellsX, cellsY), nil
}

// cellHistograms accumulates gradient magnitudes into orientation bins per cell.
// Gradients are central differences, zero on the image border.
func (h HOG) cellHistograms(lum []float64, width, height, cellsX, cellsY int) []float64 {
	var (
		ppc      = h.PixelsPerCell
		orient   = h.Orientations
		binWidth = 180 / float64(orient)
		hist     = make([]float64, cellsY*cellsX*orient)
	)

	for y := 0; y < cellsY*ppc; y++ {
		for x := 0; x < cellsX*ppc; x++ {
			var gx, gy float64
			if y > 0 && y < height-1 {
				gy = lum[(y+1)*width+x] - lum[(y-1)*width+x]
			}
			if x > 0 && x < width-1 {
				gx = lum[y*width+x+1] - lum[y*width+x-1]
			}
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}

			// Unsigned orientation in [0, 180).
			deg := math.Atan2(gy, gx) * 180 / math.Pi
			if deg < 0 {
				deg += 180
			}
			if deg >= 180 {
				deg -= 180
			}
			bin := int(deg / binWidth)
			if bin >= orient {
				bin = orient - 1
			}
			hist[((y/ppc)*cellsX+x/ppc)*orient+bin] += mag
		}
	}
	floats.Scale(1/float64(ppc*ppc), hist)
	return hist
}

func (h HOG) normalizeBlocks(hist []float64, cellsX, cellsY int) []float64 {
	var (
		cpb     = h.CellsPerBlock
		orient  = h.Orientations
		blocksX = cellsX - cpb + 1
		blocksY = cellsY - cpb + 1
		block   = make([]float64, cpb*cpb*orient)
		out     = make([]float64, 0, blocksY*blocksX*len(block))
	)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			k := 0
			for cy := 0; cy < cpb; cy++ {
				for cx := 0; cx < cpb; cx++ {
					off := ((by+cy)*cellsX + bx + cx) * orient
					k += copy(block[k:k+orient], hist[off:off+orient])
				}
			}
			floats.Scale(1/(floats.Norm(block, 1)+hogEpsilon), block)
			out = append(out, block...)
		}
	}
	return out
}
