package ensemble

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable returns samples whose class is decided by the first feature only;
// the remaining features are noise.
func separable(n, p int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		row := make([]float64, p)
		for f := range row {
			row[f] = rnd.Float64()
		}
		if i%2 == 0 {
			row[0] = 0.1 + 0.3*rnd.Float64()
		} else {
			row[0] = 0.6 + 0.3*rnd.Float64()
			y[i] = 1
		}
		X[i] = row
	}
	return X, y
}

func TestRandomForest_FitsSeparableData(t *testing.T) {
	X, y := separable(60, 5, 7)
	rf := NewRandomForest(WithNEstimators(15), WithMaxFeatures(5), WithWorkers(3))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees, 15)
	assert.Equal(t, 2, rf.NumClasses)

	correct := 0
	for i := range X {
		pred, err := rf.Predict(X[i])
		require.NoError(t, err)
		if pred == y[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 57)

	pred, err := rf.Predict([]float64{0.95, 0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, pred)
	pred, err = rf.Predict([]float64{0.05, 0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, pred)
}

func TestRandomForest_ProbabilitiesSumToOne(t *testing.T) {
	X, y := separable(40, 4, 3)
	rf := NewRandomForest(WithNEstimators(9))
	require.NoError(t, rf.Fit(X, y))

	for i := range X {
		proba, err := rf.PredictProba(X[i])
		require.NoError(t, err)
		require.Len(t, proba, 2)
		assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)
	}
}

func TestRandomForest_IsDeterministicForASeed(t *testing.T) {
	X, y := separable(40, 6, 11)
	a := NewRandomForest(WithNEstimators(8), WithRandomState(1), WithWorkers(4))
	b := NewRandomForest(WithNEstimators(8), WithRandomState(1), WithWorkers(1))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Trees, b.Trees)
}

func TestRandomForest_RespectsMaxDepth(t *testing.T) {
	X, y := separable(50, 3, 5)
	rf := NewRandomForest(WithNEstimators(4), WithMaxDepth(2))
	require.NoError(t, rf.Fit(X, y))
	for i := range rf.Trees {
		assert.LessOrEqual(t, rf.Trees[i].Depth(), 2)
	}
}

func TestRandomForest_Errors(t *testing.T) {
	rf := NewRandomForest()
	_, err := rf.PredictProba([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, rf.Fit(nil, nil))
	assert.Error(t, rf.Fit([][]float64{{1, 2}, {1}}, []int{0, 1}))
	assert.Error(t, rf.Fit([][]float64{{1}}, []int{0, 1}))

	X, y := separable(10, 2, 1)
	rf = NewRandomForest(WithNEstimators(2))
	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestGradientBoosting_FitsSeparableData(t *testing.T) {
	X, y := separable(60, 5, 9)
	gb := NewGradientBoosting(WithRounds(20), WithBoostWorkers(2))
	require.NoError(t, gb.Fit(X, y))
	assert.Len(t, gb.Trees, 20)

	for i := range X {
		pred, err := gb.Predict(X[i])
		require.NoError(t, err)
		assert.Equal(t, y[i], pred)

		proba, err := gb.PredictProba(X[i])
		require.NoError(t, err)
		assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-12)
	}
}

func TestGradientBoosting_WorkersDoNotChangeTheModel(t *testing.T) {
	X, y := separable(30, 8, 2)
	a := NewGradientBoosting(WithRounds(5), WithBoostWorkers(1))
	b := NewGradientBoosting(WithRounds(5), WithBoostWorkers(4))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Trees, b.Trees)
}

func TestGradientBoosting_RejectsMulticlass(t *testing.T) {
	gb := NewGradientBoosting(WithRounds(1))
	err := gb.Fit([][]float64{{0}, {1}, {2}}, []int{0, 1, 2})
	assert.Error(t, err)

	_, err = NewGradientBoosting().PredictProba([]float64{0})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestClassifier_EncodeDecodeRoundTrip(t *testing.T) {
	X, y := separable(30, 4, 4)
	for _, name := range []string{RandomForestName, GradientBoostingName} {
		t.Run(name, func(t *testing.T) {
			c, err := New(name, 1)
			require.NoError(t, err)
			if rf, ok := c.(*RandomForest); ok {
				rf.NEstimators = 5
			}
			if gb, ok := c.(*GradientBoosting); ok {
				gb.NEstimators = 5
			}
			require.NoError(t, c.Fit(X, y))

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, c))
			loaded, err := Decode(&buf, name)
			require.NoError(t, err)

			for i := range X {
				want, err := c.PredictProba(X[i])
				require.NoError(t, err)
				got, err := loaded.PredictProba(X[i])
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}

	_, err := New("svm", 1)
	assert.ErrorIs(t, err, ErrUnknownModel)
	_, err = Decode(&bytes.Buffer{}, "svm")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestLabelEncoder(t *testing.T) {
	le := NewLabelEncoder([]string{"parkinson", "healthy", "parkinson"})
	assert.Equal(t, []string{"healthy", "parkinson"}, le.Classes)

	idx, err := le.Transform([]string{"healthy", "parkinson"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)

	_, err = le.Index("unknown")
	assert.Error(t, err)

	name, err := le.InverseTransform(1)
	require.NoError(t, err)
	assert.Equal(t, "parkinson", name)
	_, err = le.InverseTransform(2)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, Metrics{TP: 2, FN: 1, TN: 1, FP: 1, Accuracy: 0.6, Sensitivity: 2.0 / 3.0, Specificity: 0.5}, m)

	m, err = Evaluate([]int{0, 0}, []int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Sensitivity)
	assert.Equal(t, 1.0, m.Specificity)

	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
	_, err = Evaluate([]int{1}, []int{1, 0})
	assert.Error(t, err)
}
