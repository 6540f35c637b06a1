// Package ensemble implements the tree ensembles used by the classical
// screening pipeline: a CART random forest and gradient boosted trees with a
// logistic objective, together with the label encoder and evaluation metrics
// persisted next to them.
//
// Both models keep their trees in a flat, pointer free layout so they can be
// serialised with encoding/gob and loaded back without any registration.
package ensemble

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

// Names of the supported models, as used in artifact file names.
const (
	RandomForestName     = "rf"
	GradientBoostingName = "xgb"
)

var (
	// ErrNotFitted is returned when predicting with a model that was never trained.
	ErrNotFitted = errors.New("ensemble: model is not fitted")
	// ErrUnknownModel is returned for a model name without an implementation.
	ErrUnknownModel = errors.New("ensemble: unknown model")
)

// Classifier is a trained model that maps a feature vector to class probabilities.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(x []float64) (int, error)
	PredictProba(x []float64) ([]float64, error)
}

var (
	_ Classifier = (*RandomForest)(nil)
	_ Classifier = (*GradientBoosting)(nil)
)

// New returns an untrained classifier with default hyperparameters.
// The seed only affects the random forest; boosting is deterministic.
func New(name string, seed int64) (Classifier, error) {
	switch name {
	case RandomForestName:
		return NewRandomForest(WithRandomState(seed)), nil
	case GradientBoostingName:
		return NewGradientBoosting(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Encode serialises a trained classifier.
func Encode(w io.Writer, c Classifier) error {
	return gob.NewEncoder(w).Encode(c)
}

// Decode reads a classifier previously written by Encode.
// The name selects the concrete type; gob does not carry it.
func Decode(r io.Reader, name string) (Classifier, error) {
	var c Classifier
	switch name {
	case RandomForestName:
		c = &RandomForest{}
	case GradientBoostingName:
		c = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if err := gob.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", name, err)
	}
	return c, nil
}

// validate checks the training matrix and returns the number of features.
func validate(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("ensemble: empty X")
	}
	if len(y) != len(X) {
		return 0, errors.New("ensemble: X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return 0, errors.New("ensemble: samples have no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, errors.New("ensemble: inconsistent number of features in X rows")
		}
	}
	for _, lab := range y {
		if lab < 0 {
			return 0, fmt.Errorf("ensemble: negative class label %d", lab)
		}
	}
	return p, nil
}

// argmax returns the index of the largest value, preferring the lowest index on ties.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
