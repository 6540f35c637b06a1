package pdscreen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdscreen/pdscreen/ensemble"
	"github.com/pdscreen/pdscreen/logging"
	"github.com/pdscreen/pdscreen/store"
	"go.uber.org/zap"
)

// DefaultDataDir is the root of the drawing datasets.
const DefaultDataDir = "data"

// Dataset split directories, each holding one sub-directory per label.
const (
	TrainingSplit = "training"
	TestingSplit  = "testing"
)

// ErrNoTrainingData is returned when a dataset has no usable training image.
var ErrNoTrainingData = errors.New("no training data found")

// Sample is one labelled drawing turned into its descriptor.
type Sample struct {
	Path     string
	Label    string
	Features []float64
}

// TrainResult summarises the training of one dataset.
type TrainResult struct {
	Dataset      DrawingType
	TrainSamples int
	TestSamples  int
	Classes      []string
	Metrics      map[string]ensemble.Metrics
}

// Trainer builds the drawing models from data/<dataset>/{training,testing}/<label>/.
type Trainer struct {
	DataDir string
	Store   *store.Store
	Workers int
	Seed    int64
	// Estimators overrides the number of trees (forest) and rounds (boosting) when positive.
	Estimators int
	HOG        HOG
	Logger     *zap.Logger
	// Progress, when set, is called by TrainAll before each dataset.
	Progress func(DrawingType)
}

// NewTrainer returns a trainer with the default seed and descriptor.
func NewTrainer(dataDir string, s *store.Store, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		DataDir: dataDir,
		Store:   s,
		Seed:    1,
		HOG:     DefaultHOG,
		Logger:  logger.Named("trainer"),
	}
}

// TrainAll trains the spiral then the wave models. A dataset without training
// images is skipped; it is an error only when no dataset could be trained.
func (t *Trainer) TrainAll(ctx context.Context) error {
	trained := 0
	for _, dt := range DrawingTypes {
		if t.Progress != nil {
			t.Progress(dt)
		}
		res, err := t.Train(ctx, dt)
		if errors.Is(err, ErrNoTrainingData) {
			t.logger().Warn("skipping dataset", zap.Stringer("dataset", dt), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		trained++
		t.logger().Info("models trained and saved",
			zap.Stringer("dataset", res.Dataset),
			zap.Int("train", res.TrainSamples),
			zap.Int("test", res.TestSamples),
		)
	}
	if trained == 0 {
		return fmt.Errorf("%w under %s", ErrNoTrainingData, t.DataDir)
	}
	return nil
}

// Train fits, evaluates and persists both models of one dataset.
func (t *Trainer) Train(ctx context.Context, dt DrawingType) (*TrainResult, error) {
	if t.Store == nil {
		return nil, errors.New("trainer has no artifact store")
	}
	root := filepath.Join(t.DataDir, dt.String())

	train, err := t.LoadSplit(ctx, filepath.Join(root, TrainingSplit))
	if err != nil {
		return nil, logging.NewOperationError("load training data", dt.String(), err)
	}
	if len(train) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoTrainingData, dt)
	}
	test, err := t.LoadSplit(ctx, filepath.Join(root, TestingSplit))
	if err != nil {
		return nil, logging.NewOperationError("load testing data", dt.String(), err)
	}

	le := ensemble.NewLabelEncoder(labelsOf(train))
	trainY, err := le.Transform(labelsOf(train))
	if err != nil {
		return nil, logging.NewOperationError("encode labels", dt.String(), err)
	}
	testY, err := le.Transform(labelsOf(test))
	if err != nil {
		return nil, logging.NewOperationError("encode labels", dt.String(), err)
	}
	trainX, testX := featuresOf(train), featuresOf(test)

	metrics := make(map[string]ensemble.Metrics, len(store.ModelNames))
	for _, name := range store.ModelNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clf, err := t.newModel(name)
		if err != nil {
			return nil, err
		}

		t.logger().Info("training model", zap.Stringer("dataset", dt), zap.String("model", name), zap.Int("samples", len(trainX)))
		if err := clf.Fit(trainX, trainY); err != nil {
			return nil, logging.NewOperationError("fit "+name, dt.String(), err)
		}

		if len(testX) > 0 {
			m, err := evaluate(clf, testX, testY)
			if err != nil {
				return nil, logging.NewOperationError("evaluate "+name, dt.String(), err)
			}
			metrics[name] = m
			t.logger().Info("model evaluated",
				zap.Stringer("dataset", dt),
				zap.String("model", name),
				zap.Float64("accuracy", m.Accuracy),
				zap.Float64("sensitivity", m.Sensitivity),
				zap.Float64("specificity", m.Specificity),
			)
		}
		if err := t.Store.SaveModel(dt.String(), name, clf); err != nil {
			return nil, logging.NewOperationError("save model", dt.String(), err)
		}
	}
	if err := t.Store.SaveEncoder(dt.String(), le); err != nil {
		return nil, logging.NewOperationError("save label encoder", dt.String(), err)
	}
	if err := t.Store.SaveMetrics(dt.String(), metrics); err != nil {
		return nil, logging.NewOperationError("save metrics", dt.String(), err)
	}

	return &TrainResult{
		Dataset:      dt,
		TrainSamples: len(train),
		TestSamples:  len(test),
		Classes:      le.Classes,
		Metrics:      metrics,
	}, nil
}

// LoadSplit extracts the descriptors of every image under dir concurrently.
// The label of an image is the name of its parent directory. A missing
// directory yields no samples; unreadable images are logged and skipped.
func (t *Trainer) LoadSplit(ctx context.Context, dir string) ([]Sample, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		t.logger().Warn("path does not exist", zap.String("path", dir))
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type loaded struct {
		sample Sample
		err    error
	}
	paths, errc := walkDir(ctx.Done(), dir, SupportedExtensions)
	results := consume(ctx.Done(), paths, workerCount(t.Workers), func(path string) loaded {
		features, err := t.describe(path)
		return loaded{
			sample: Sample{Path: path, Label: filepath.Base(filepath.Dir(path)), Features: features},
			err:    err,
		}
	})

	var samples []Sample
	for res := range results {
		if res.err != nil {
			t.logger().Warn("error processing image", zap.String("path", res.sample.Path), zap.Error(res.err))
			continue
		}
		samples = append(samples, res.sample)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		t.logger().Warn("no images found", zap.String("path", dir))
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Path < samples[j].Path })
	return samples, nil
}

func (t *Trainer) describe(path string) ([]float64, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	processed, err := PreprocessDrawing(img)
	if err != nil {
		return nil, err
	}
	hog := t.HOG
	if hog.Orientations == 0 {
		hog = DefaultHOG
	}
	return hog.Describe(processed)
}

func (t *Trainer) newModel(name string) (ensemble.Classifier, error) {
	switch name {
	case ensemble.RandomForestName:
		opts := []ensemble.RandomForestOption{
			ensemble.WithRandomState(t.Seed),
			ensemble.WithWorkers(t.Workers),
		}
		if t.Estimators > 0 {
			opts = append(opts, ensemble.WithNEstimators(t.Estimators))
		}
		return ensemble.NewRandomForest(opts...), nil
	case ensemble.GradientBoostingName:
		opts := []ensemble.BoostOption{ensemble.WithBoostWorkers(t.Workers)}
		if t.Estimators > 0 {
			opts = append(opts, ensemble.WithRounds(t.Estimators))
		}
		return ensemble.NewGradientBoosting(opts...), nil
	}
	return ensemble.New(name, t.Seed)
}

func evaluate(clf ensemble.Classifier, X [][]float64, y []int) (ensemble.Metrics, error) {
	preds := make([]int, len(X))
	for i, x := range X {
		p, err := clf.Predict(x)
		if err != nil {
			return ensemble.Metrics{}, err
		}
		preds[i] = p
	}
	return ensemble.Evaluate(y, preds)
}

func labelsOf(samples []Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Label
	}
	return out
}

func featuresOf(samples []Sample) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Features
	}
	return out
}

func (t *Trainer) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
