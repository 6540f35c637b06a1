// Package deep runs the pre-trained handwriting network through ONNX Runtime.
package deep

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Default artifact locations.
var (
	DefaultModelPath    = filepath.Join("models", "best_model.onnx")
	DefaultMetadataPath = filepath.Join("models", "best_model.json")
)

// Config locates the model artifacts and the ONNX Runtime shared library.
type Config struct {
	ModelPath    string
	MetadataPath string
	// SharedLibraryPath overrides the onnxruntime library lookup when set.
	SharedLibraryPath string
	// ImageSize, when positive, is the side of the images the caller feeds
	// to Predict. Load rejects models expecting another size.
	ImageSize int
}

// DefaultConfig returns the default artifact locations.
func DefaultConfig() Config {
	return Config{
		ModelPath:    DefaultModelPath,
		MetadataPath: DefaultMetadataPath,
	}
}

// Model is a loaded network bound to preallocated input and output tensors.
// Predict serialises runs, so a Model may be shared between goroutines.
type Model struct {
	Metadata Metadata

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// Load reads the metadata, initialises the runtime and creates the session.
func Load(cfg Config) (*Model, error) {
	md, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	if cfg.ImageSize > 0 {
		if err := md.CheckImageSize(cfg.ImageSize); err != nil {
			return nil, err
		}
	}

	if !ort.IsInitialized() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(md.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(md.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{md.InputName}, []string{md.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Model{
		Metadata: md,
		session:  session,
		input:    input,
		output:   output,
	}, nil
}

// Predict runs the network on a 1xHxWx3 NHWC tensor and returns the
// Parkinson's probability.
func (m *Model) Predict(nhwc []float32) (float32, error) {
	if len(nhwc) != m.Metadata.InputLen() {
		return 0, fmt.Errorf("expected %d input values, got %d", m.Metadata.InputLen(), len(nhwc))
	}
	input := nhwc
	if m.Metadata.Layout == LayoutNCHW {
		s := m.Metadata.InputShape
		input = NHWCToNCHW(nhwc, int(s[0]), int(s[2]), int(s[3]), int(s[1]))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return 0, fmt.Errorf("model is closed")
	}
	copy(m.input.GetData(), input)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	return Probability(m.output.GetData(), m.Metadata)
}

// Probability extracts the Parkinson's probability from the raw network output:
// the single sigmoid unit, or the positive class of a per-class output.
func Probability(out []float32, md Metadata) (float32, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("empty network output")
	}
	idx := 0
	if len(out) > 1 {
		idx = md.PositiveIndex()
	}
	if idx < 0 || idx >= len(out) {
		return 0, fmt.Errorf("positive class index %d out of range for %d outputs", idx, len(out))
	}
	p := out[idx]
	if math.IsNaN(float64(p)) {
		return 0, fmt.Errorf("network returned NaN")
	}
	return p, nil
}

// Close releases the session, the tensors and the runtime environment.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	ort.DestroyEnvironment()
}
