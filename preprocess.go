package pdscreen

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const (
	// DrawingSize is the side of the square binary image fed to the descriptor.
	DrawingSize = 200

	// HandwritingSize is the side of the square input of the handwriting network.
	HandwritingSize = 224

	// Handwriting samples are first brought to a page-like aspect ratio.
	handwritingWidth  = 700
	handwritingHeight = 200
)

// drawingPipeline is the classical preprocessing backend. Builds with the gocv
// tag swap it for the OpenCV implementation.
var drawingPipeline = preprocessDrawing

// PreprocessDrawing converts a spiral or wave drawing into a DrawingSize square
// binary image with the strokes in white.
func PreprocessDrawing(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, fmt.Errorf("preprocess: nil image")
	}
	return drawingPipeline(img)
}

func preprocessDrawing(img image.Image) (*image.Gray, error) {
	gray := Grayscale(img)
	resized := resizeGray(gray, DrawingSize, DrawingSize)
	return ThresholdBinaryInv(resized, OtsuThreshold(resized)), nil
}

// resizeGray resamples a grayscale image from the four nearest source pixels
// without prefiltering, matching OpenCV's INTER_LINEAR used by the gocv backend.
func resizeGray(src *image.Gray, width, height int) *image.Gray {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: shape, Data: make([]float32, n)}
}

// PreprocessHandwriting builds the 1x224x224x3 NHWC input of the handwriting
// network: RGB channels scaled to [0, 1].
func PreprocessHandwriting(img image.Image) (*Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("preprocess: nil image")
	}
	page := resize.Resize(handwritingWidth, handwritingHeight, img, resize.Bicubic)
	sample := resize.Resize(HandwritingSize, HandwritingSize, page, resize.Bicubic)

	t := NewTensor(1, HandwritingSize, HandwritingSize, 3)
	b := sample.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(sample.At(x, y)).(color.NRGBA)
			t.Data[i] = float32(c.R) / 255
			t.Data[i+1] = float32(c.G) / 255
			t.Data[i+2] = float32(c.B) / 255
			i += 3
		}
	}
	return t, nil
}
