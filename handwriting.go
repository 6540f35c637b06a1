package pdscreen

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/utils"
	"go.uber.org/zap"
)

// HandwritingThreshold is the probability above which a sample is reported as Parkinson's.
const HandwritingThreshold = 0.5

// Predictor returns the Parkinson's probability of a preprocessed handwriting tensor.
type Predictor interface {
	Predict(input []float32) (float32, error)
}

// HandwritingAnalyzer runs the deep pipeline on handwriting samples.
type HandwritingAnalyzer struct {
	Model  Predictor
	Logger *zap.Logger
}

// NewHandwritingAnalyzer wraps a loaded model.
func NewHandwritingAnalyzer(model Predictor, logger *zap.Logger) *HandwritingAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandwritingAnalyzer{Model: model, Logger: logger.Named("handwriting")}
}

// AnalyzeFile classifies a handwriting sample stored on disk.
func (h *HandwritingAnalyzer) AnalyzeFile(ctx context.Context, path string) (*HandwritingReport, error) {
	f, err := openImageFile(path)
	if err != nil {
		return nil, logging.NewOperationError("open image", filepath.Base(path), err)
	}
	defer f.Close()
	return h.Analyze(ctx, f, filepath.Base(path))
}

// Analyze classifies a handwriting sample read from src.
func (h *HandwritingAnalyzer) Analyze(ctx context.Context, src io.Reader, name string) (*HandwritingReport, error) {
	if h.Model == nil {
		return nil, fmt.Errorf("handwriting model is not loaded")
	}

	start := time.Now()
	img, err := LoadImage(src)
	if err != nil {
		return nil, logging.NewOperationError("load image", name, err)
	}
	input, err := PreprocessHandwriting(img)
	if err != nil {
		return nil, logging.NewOperationError("preprocess image", name, err)
	}
	preprocessing := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	p, err := h.Model.Predict(input.Data)
	if err != nil {
		return nil, logging.NewOperationError("predict", name, err)
	}
	inference := time.Since(start)

	report := newHandwritingReport(name, float64(p))
	report.Timing = newTiming(preprocessing, inference)

	if h.Logger != nil {
		h.Logger.Debug("handwriting analysed",
			zap.String("image", name),
			zap.Float64("probability", report.Probability),
			zap.Duration("elapsed", report.Timing.Total()),
		)
	}
	return report, nil
}

func newHandwritingReport(name string, p float64) *HandwritingReport {
	p = utils.Clamp(p, 0, 1)
	r := &HandwritingReport{Image: name, Probability: p}
	if p > HandwritingThreshold {
		r.Prediction = LabelParkinson
		r.Parkinson = true
		r.Confidence = p
	} else {
		r.Prediction = LabelHealthy
		r.Confidence = 1 - p
	}
	return r
}
