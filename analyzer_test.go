package pdscreen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pdscreen/pdscreen/ensemble"
	"github.com/pdscreen/pdscreen/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedModel always predicts the same distribution.
type fixedModel struct {
	proba []float64
}

func (m *fixedModel) Fit([][]float64, []int) error { return nil }

func (m *fixedModel) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if len(p) > 1 && p[1] > p[0] {
		return 1, nil
	}
	return 0, nil
}

func (m *fixedModel) PredictProba(x []float64) ([]float64, error) {
	if len(x) != DefaultHOG.Len(DrawingSize, DrawingSize) {
		return nil, fmt.Errorf("unexpected feature vector length %d", len(x))
	}
	return m.proba, nil
}

func fixedBundle(rf, xgb float64) *store.Bundle {
	return &store.Bundle{
		Models: map[string]ensemble.Classifier{
			ensemble.RandomForestName:     &fixedModel{proba: []float64{1 - rf, rf}},
			ensemble.GradientBoostingName: &fixedModel{proba: []float64{1 - xgb, xgb}},
		},
		Encoder: ensemble.NewLabelEncoder([]string{"parkinson", "healthy"}),
		Metrics: map[string]ensemble.Metrics{
			ensemble.RandomForestName: {Accuracy: 0.8, Sensitivity: 0.7, Specificity: 0.9},
		},
	}
}

// stubLoader reports missing artifacts until trained is set.
type stubLoader struct {
	mu      sync.Mutex
	bundle  *store.Bundle
	trained bool
	never   bool
	loads   int
}

func (l *stubLoader) Load(dataset string) (*store.Bundle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if !l.trained || l.never {
		return nil, fmt.Errorf("%s: %w", dataset, store.ErrNotFound)
	}
	return l.bundle, nil
}

type stubTrainer struct {
	loader *stubLoader
	calls  int
	err    error
}

func (s *stubTrainer) TrainAll(context.Context) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.loader.mu.Lock()
	s.loader.trained = true
	s.loader.mu.Unlock()
	return nil
}

func TestDrawingAnalyzer_Analyze(t *testing.T) {
	loader := &stubLoader{bundle: fixedBundle(0.9, 0.7), trained: true}
	a := NewDrawingAnalyzer(loader, nil, nil)

	report, err := a.Analyze(context.Background(), bytes.NewReader(encodePNG(t, drawSpiral(256, 0, 1))), "spiral.png", Spiral)
	require.NoError(t, err)

	assert.Equal(t, "spiral.png", report.Image)
	assert.Equal(t, DrawingSize, report.Width)
	assert.Equal(t, 12996, report.FeatureLen)
	require.Len(t, report.Verdicts, 2)

	rf := report.Verdicts[0]
	assert.Equal(t, "Random Forest", rf.Title)
	assert.Equal(t, "parkinson", rf.Prediction)
	assert.True(t, rf.Parkinson)
	assert.InDelta(t, 1.0, rf.Healthy+rf.Disease, 1e-9)
	require.NotNil(t, rf.Metrics)
	assert.Equal(t, 0.8, rf.Metrics.Accuracy)
	assert.Nil(t, report.Verdicts[1].Metrics)

	assert.Equal(t, 2, report.Consensus.Votes)
	assert.InDelta(t, 0.8, report.Consensus.Probability, 1e-12)
	assert.Equal(t, RiskHigh, report.Consensus.Risk)
	assert.Equal(t, "evaluate", report.Recommendation.Action)

	_, err = a.Analyze(context.Background(), bytes.NewReader(encodePNG(t, drawSpiral(100, 0, 2))), "again.png", Spiral)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads, "bundles are cached")
}

func TestDrawingAnalyzer_RetrainsOnce(t *testing.T) {
	loader := &stubLoader{bundle: fixedBundle(0.1, 0.2)}
	trainer := &stubTrainer{loader: loader}
	a := NewDrawingAnalyzer(loader, trainer, nil)

	report, err := a.Analyze(context.Background(), bytes.NewReader(encodePNG(t, drawSpiral(200, 0, 1))), "wave.png", Wave)
	require.NoError(t, err)
	assert.Equal(t, 1, trainer.calls)
	assert.Equal(t, 2, loader.loads)
	assert.Equal(t, RiskLow, report.Consensus.Risk)
	assert.Equal(t, "healthy", report.Verdicts[0].Prediction)
}

func TestDrawingAnalyzer_RetrainFailure(t *testing.T) {
	loader := &stubLoader{bundle: fixedBundle(0.1, 0.2), never: true}
	trainer := &stubTrainer{loader: loader}
	a := NewDrawingAnalyzer(loader, trainer, nil)

	img := encodePNG(t, drawSpiral(200, 0, 1))
	_, err := a.Analyze(context.Background(), bytes.NewReader(img), "x.png", Spiral)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, trainer.calls, "training is attempted exactly once")

	trainer = &stubTrainer{loader: &stubLoader{}, err: errors.New("disk full")}
	a = NewDrawingAnalyzer(trainer.loader, trainer, nil)
	_, err = a.Analyze(context.Background(), bytes.NewReader(img), "x.png", Spiral)
	assert.ErrorContains(t, err, "disk full")
}

func TestDrawingAnalyzer_RetrainAttemptedOnce(t *testing.T) {
	loader := &stubLoader{bundle: fixedBundle(0.1, 0.2), never: true}
	trainer := &stubTrainer{loader: loader}
	a := NewDrawingAnalyzer(loader, trainer, nil)

	img := encodePNG(t, drawSpiral(200, 0, 1))
	for i := 0; i < 3; i++ {
		_, err := a.Analyze(context.Background(), bytes.NewReader(img), "w.png", Wave)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	_, err := a.Analyze(context.Background(), bytes.NewReader(img), "s.png", Spiral)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, trainer.calls, "one training run covers every dataset")

	failing := &stubTrainer{loader: &stubLoader{}, err: errors.New("disk full")}
	a = NewDrawingAnalyzer(failing.loader, failing, nil)
	for i := 0; i < 2; i++ {
		_, err = a.Analyze(context.Background(), bytes.NewReader(img), "s.png", Spiral)
		assert.ErrorContains(t, err, "disk full")
	}
	assert.Equal(t, 1, failing.calls)
}

func TestDrawingAnalyzer_BadImageSkipsTraining(t *testing.T) {
	loader := &stubLoader{bundle: fixedBundle(0.1, 0.2)}
	trainer := &stubTrainer{loader: loader}
	a := NewDrawingAnalyzer(loader, trainer, nil)

	_, err := a.Analyze(context.Background(), bytes.NewReader([]byte("not an image")), "stdin", Spiral)
	assert.Error(t, err)
	assert.Zero(t, trainer.calls)
	assert.Zero(t, loader.loads)
}

func TestDrawingAnalyzer_MissingImage(t *testing.T) {
	loader := &stubLoader{}
	trainer := &stubTrainer{loader: loader}
	a := NewDrawingAnalyzer(loader, trainer, nil)

	_, err := a.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "nope.png"), Spiral)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "nope.png")
	assert.Zero(t, trainer.calls, "a missing image never triggers training")
	assert.Zero(t, loader.loads)
}

func TestDrawingAnalyzer_BadInput(t *testing.T) {
	a := NewDrawingAnalyzer(&stubLoader{bundle: fixedBundle(0.5, 0.5), trained: true}, nil, nil)

	_, err := a.Analyze(context.Background(), bytes.NewReader([]byte("garbage")), "g.png", Spiral)
	assert.Error(t, err)

	_, err = a.Analyze(context.Background(), bytes.NewReader(encodePNG(t, drawSpiral(64, 0, 1))), "x.png", DrawingType(5))
	assert.ErrorIs(t, err, ErrUnknownDrawingType)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, bytes.NewReader(encodePNG(t, drawSpiral(64, 0, 1))), "x.png", Spiral)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrawingAnalyzer_IncompleteBundle(t *testing.T) {
	b := fixedBundle(0.5, 0.5)
	delete(b.Models, ensemble.GradientBoostingName)
	a := NewDrawingAnalyzer(&stubLoader{bundle: b, trained: true}, nil, nil)

	_, err := a.Analyze(context.Background(), bytes.NewReader(encodePNG(t, drawSpiral(64, 0, 1))), "x.png", Spiral)
	assert.ErrorContains(t, err, "xgb")
}

func TestPredict_SingleClassModel(t *testing.T) {
	b := fixedBundle(0.5, 0.5)
	b.Models[ensemble.RandomForestName] = &fixedModel{proba: []float64{1}}
	b.Encoder = ensemble.NewLabelEncoder([]string{"healthy"})

	features := make([]float64, DefaultHOG.Len(DrawingSize, DrawingSize))
	v, err := predict(b, ensemble.RandomForestName, features)
	require.NoError(t, err)
	assert.Equal(t, "healthy", v.Prediction)
	assert.Equal(t, 1.0, v.Healthy)
	assert.Zero(t, v.Disease)
}
