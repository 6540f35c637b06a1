package deep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Tensor layouts understood by the model wrapper.
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// Metadata describes the exported network: tensor names and shapes, channel
// layout and output classes.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Layout      string   `json:"layout"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// DefaultMetadata matches the handwriting network: a single sigmoid unit over
// a 224x224 RGB image.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 224, 224, 3},
		OutputShape: []int64{1, 1},
		InputName:   "input",
		OutputName:  "output",
		Layout:      LayoutNHWC,
		Classes:     []string{"healthy", "parkinson"},
		ImageSize:   224,
	}
}

// LoadMetadata reads the metadata file, filling unset fields with the defaults.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	md := DefaultMetadata()
	md.InputShape, md.OutputShape, md.Classes, md.ImageSize = nil, nil, nil, 0
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	def := DefaultMetadata()
	if len(md.InputShape) == 0 {
		md.InputShape = def.InputShape
	}
	if len(md.OutputShape) == 0 {
		md.OutputShape = def.OutputShape
	}
	if len(md.Classes) == 0 {
		md.Classes = def.Classes
	}
	md.Layout = strings.ToUpper(md.Layout)
	if md.ImageSize == 0 && len(md.InputShape) == 4 {
		md.ImageSize, _ = md.Size()
	}
	if err := md.Validate(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// Validate checks that the metadata describes a single square RGB image input.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("input shape must have 4 dimensions, got %v", m.InputShape)
	}
	for _, d := range m.InputShape {
		if d <= 0 {
			return fmt.Errorf("input shape must be static, got %v", m.InputShape)
		}
	}
	if m.InputShape[0] != 1 {
		return fmt.Errorf("input batch must be 1, got %v", m.InputShape)
	}
	switch m.Layout {
	case LayoutNHWC:
		if m.InputShape[3] != 3 {
			return fmt.Errorf("NHWC input must have 3 channels, got %v", m.InputShape)
		}
	case LayoutNCHW:
		if m.InputShape[1] != 3 {
			return fmt.Errorf("NCHW input must have 3 channels, got %v", m.InputShape)
		}
	default:
		return fmt.Errorf("unsupported layout %q", m.Layout)
	}
	if m.OutputLen() == 0 {
		return errors.New("output shape is empty")
	}
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("input and output names are required")
	}
	if w, h := m.Size(); w != m.ImageSize || h != m.ImageSize {
		return fmt.Errorf("input shape %v does not match image size %d", m.InputShape, m.ImageSize)
	}
	return nil
}

// CheckImageSize reports whether the network takes size x size images.
func (m Metadata) CheckImageSize(size int) error {
	if m.ImageSize != size {
		return fmt.Errorf("model expects %dx%d images, preprocessing produces %dx%d",
			m.ImageSize, m.ImageSize, size, size)
	}
	return nil
}

// InputLen is the number of values of the input tensor.
func (m Metadata) InputLen() int { return volume(m.InputShape) }

// OutputLen is the number of values of the output tensor.
func (m Metadata) OutputLen() int { return volume(m.OutputShape) }

// Size returns the spatial size of the input image.
func (m Metadata) Size() (width, height int) {
	if m.Layout == LayoutNCHW {
		return int(m.InputShape[3]), int(m.InputShape[2])
	}
	return int(m.InputShape[2]), int(m.InputShape[1])
}

// PositiveIndex returns the output index holding the Parkinson's probability
// for networks with one output per class.
func (m Metadata) PositiveIndex() int {
	for i, c := range m.Classes {
		if strings.Contains(strings.ToLower(c), "parkinson") {
			return i
		}
	}
	return len(m.Classes) - 1
}

func volume(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// NHWCToNCHW reorders an interleaved image tensor into planar channels.
func NHWCToNCHW(src []float32, n, h, w, c int) []float32 {
	dst := make([]float32, len(src))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					dst[((b*c+ch)*h+y)*w+x] = src[((b*h+y)*w+x)*c+ch]
				}
			}
		}
	}
	return dst
}
