package pdscreen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdscreen/pdscreen/ensemble"
	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/store"
	"go.uber.org/zap"
)

// BundleLoader loads the persisted artifacts of a dataset.
type BundleLoader interface {
	Load(dataset string) (*store.Bundle, error)
}

// Retrainer rebuilds the artifacts of every dataset.
type Retrainer interface {
	TrainAll(ctx context.Context) error
}

var modelTitles = map[string]string{
	ensemble.RandomForestName:     "Random Forest",
	ensemble.GradientBoostingName: "Gradient Boosting",
}

// DrawingAnalyzer runs the classical pipeline on spiral and wave drawings.
// It is safe for concurrent use.
type DrawingAnalyzer struct {
	Models BundleLoader
	// Trainer, when set, is invoked at most once per analyzer if the models
	// of a dataset are missing.
	Trainer Retrainer
	HOG     HOG
	Logger  *zap.Logger

	mu        sync.Mutex
	bundles   map[DrawingType]*store.Bundle
	retrained map[DrawingType]error
}

// NewDrawingAnalyzer returns an analyzer using the default descriptor.
func NewDrawingAnalyzer(models BundleLoader, trainer Retrainer, logger *zap.Logger) *DrawingAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DrawingAnalyzer{
		Models:  models,
		Trainer: trainer,
		HOG:     DefaultHOG,
		Logger:  logger.Named("analyzer"),
	}
}

// bundle returns the cached artifacts of a dataset, loading them on first use.
// Missing artifacts trigger a single retraining followed by a second load.
// Training covers every dataset, so once it has run, missing artifacts are
// reported without training again; a failed training is reported as is.
func (a *DrawingAnalyzer) bundle(ctx context.Context, dt DrawingType) (*store.Bundle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.bundles[dt]; ok {
		return b, nil
	}

	b, err := a.Models.Load(dt.String())
	if errors.Is(err, store.ErrNotFound) && a.Trainer != nil {
		trainErr, tried := a.retrained[dt]
		if !tried {
			a.logger().Warn("trained models not found, training new models", zap.Stringer("dataset", dt))
			trainErr = a.Trainer.TrainAll(ctx)
			if a.retrained == nil {
				a.retrained = make(map[DrawingType]error, len(DrawingTypes))
			}
			for _, t := range DrawingTypes {
				a.retrained[t] = trainErr
			}
		}
		if trainErr != nil {
			return nil, logging.NewOperationError("train models", dt.String(), trainErr)
		}
		if !tried {
			b, err = a.Models.Load(dt.String())
		}
	}
	if err != nil {
		return nil, logging.NewOperationError("load models", dt.String(), err)
	}
	if err := checkBundle(b); err != nil {
		return nil, logging.NewOperationError("load models", dt.String(), err)
	}

	if a.bundles == nil {
		a.bundles = make(map[DrawingType]*store.Bundle)
	}
	a.bundles[dt] = b
	return b, nil
}

func checkBundle(b *store.Bundle) error {
	if b == nil || b.Encoder == nil {
		return errors.New("incomplete model bundle")
	}
	for _, name := range store.ModelNames {
		if b.Models[name] == nil {
			return fmt.Errorf("model %q missing from bundle", name)
		}
	}
	return nil
}

// AnalyzeFile analyses a drawing stored on disk. A missing image is reported
// before any model is loaded or trained.
func (a *DrawingAnalyzer) AnalyzeFile(ctx context.Context, path string, dt DrawingType) (*DrawingReport, error) {
	f, err := openImageFile(path)
	if err != nil {
		return nil, logging.NewOperationError("open image", filepath.Base(path), err)
	}
	defer f.Close()
	return a.Analyze(ctx, f, filepath.Base(path), dt)
}

// Analyze classifies a drawing read from src. Preprocessing time covers
// decoding, preprocessing and feature extraction; inference time covers both models.
// The image is decoded before the models are loaded, so bad input never
// triggers training.
func (a *DrawingAnalyzer) Analyze(ctx context.Context, src io.Reader, name string, dt DrawingType) (*DrawingReport, error) {
	if dt != Spiral && dt != Wave {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDrawingType, int(dt))
	}

	start := time.Now()
	img, err := LoadImage(src)
	if err != nil {
		return nil, logging.NewOperationError("load image", name, err)
	}
	processed, err := PreprocessDrawing(img)
	if err != nil {
		return nil, logging.NewOperationError("preprocess image", name, err)
	}
	hog := a.HOG
	if hog.Orientations == 0 {
		hog = DefaultHOG
	}
	features, err := hog.Describe(processed)
	if err != nil {
		return nil, logging.NewOperationError("extract features", name, err)
	}
	preprocessing := time.Since(start)

	b, err := a.bundle(ctx, dt)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	verdicts := make([]Verdict, 0, len(store.ModelNames))
	for _, model := range store.ModelNames {
		v, err := predict(b, model, features)
		if err != nil {
			return nil, logging.NewOperationError("predict", name, err)
		}
		verdicts = append(verdicts, v)
	}
	inference := time.Since(start)

	consensus := NewConsensus(verdicts)
	report := &DrawingReport{
		Image:          name,
		DrawingType:    dt,
		Width:          processed.Bounds().Dx(),
		Height:         processed.Bounds().Dy(),
		FeatureLen:     len(features),
		Timing:         newTiming(preprocessing, inference),
		Verdicts:       verdicts,
		Consensus:      consensus,
		Recommendation: Recommend(consensus.Probability),
	}

	a.logger().Debug("drawing analysed",
		zap.String("image", name),
		zap.Stringer("dataset", dt),
		zap.Int("votes", consensus.Votes),
		zap.Float64("probability", consensus.Probability),
		zap.Duration("elapsed", report.Timing.Total()),
	)
	return report, nil
}

// predict runs one model of the bundle. Class 1 is Parkinson's; a probability
// vector missing a class (a model trained on one label only) reads it as 0.
func predict(b *store.Bundle, model string, features []float64) (Verdict, error) {
	clf := b.Models[model]
	class, err := clf.Predict(features)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", model, err)
	}
	proba, err := clf.PredictProba(features)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", model, err)
	}
	label, err := b.Encoder.InverseTransform(class)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", model, err)
	}

	v := Verdict{
		Model:      model,
		Title:      modelTitles[model],
		Prediction: label,
		Parkinson:  class == 1,
	}
	if len(proba) > 0 {
		v.Healthy = proba[0]
	}
	if len(proba) > 1 {
		v.Disease = proba[1]
	}
	if m, ok := b.Metrics[model]; ok {
		v.Metrics = &m
	}
	return v, nil
}

func (a *DrawingAnalyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
