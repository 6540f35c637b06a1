//go:build gocv

package pdscreen

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	drawingPipeline = preprocessDrawingOpenCV
}

// preprocessDrawingOpenCV runs the grayscale, resize and Otsu steps through OpenCV.
func preprocessDrawingOpenCV(img image.Image) (*image.Gray, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("could not convert the image to a matrix: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(DrawingSize, DrawingSize), 0, 0, gocv.InterpolationLinear)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(resized, &binary, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	out, err := binary.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert the matrix to an image: %w", err)
	}
	res, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected thresholded image type %T", out)
	}
	return res, nil
}
