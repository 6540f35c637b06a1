// Package store persists the classical pipeline artifacts of a dataset: one
// file per trained model, the label encoder and the evaluation metrics.
//
//	<dir>/<dataset>_<model>_model.gob
//	<dir>/<dataset>_label_encoder.json
//	<dir>/<dataset>_metrics.json
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdscreen/pdscreen/ensemble"
)

// DefaultDir is the directory the artifacts are read from and written to.
const DefaultDir = "plots"

// ErrNotFound reports that at least one artifact of a dataset is missing.
var ErrNotFound = errors.New("trained models not found")

// ModelNames lists the models trained and loaded for every dataset.
var ModelNames = []string{ensemble.RandomForestName, ensemble.GradientBoostingName}

// Bundle holds everything needed to classify one kind of drawing.
type Bundle struct {
	Dataset string
	Models  map[string]ensemble.Classifier
	Encoder *ensemble.LabelEncoder
	Metrics map[string]ensemble.Metrics
}

// Store reads and writes artifacts under Dir.
type Store struct {
	Dir string
}

// New returns a store rooted at dir, or at DefaultDir when dir is empty.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

// ModelPath returns the file holding a trained model.
func (s *Store) ModelPath(dataset, model string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s_model.gob", dataset, model))
}

// EncoderPath returns the file holding the dataset's label encoder.
func (s *Store) EncoderPath(dataset string) string {
	return filepath.Join(s.Dir, dataset+"_label_encoder.json")
}

// MetricsPath returns the file holding the dataset's evaluation metrics.
func (s *Store) MetricsPath(dataset string) string {
	return filepath.Join(s.Dir, dataset+"_metrics.json")
}

// Load reads every artifact of a dataset. If any file is absent the returned
// error wraps ErrNotFound; other failures (corrupt files, permissions) do not.
func (s *Store) Load(dataset string) (*Bundle, error) {
	paths := []string{s.EncoderPath(dataset), s.MetricsPath(dataset)}
	for _, name := range ModelNames {
		paths = append(paths, s.ModelPath(dataset, name))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: missing %s", ErrNotFound, p)
			}
			return nil, err
		}
	}

	b := &Bundle{
		Dataset: dataset,
		Models:  make(map[string]ensemble.Classifier, len(ModelNames)),
		Encoder: &ensemble.LabelEncoder{},
		Metrics: map[string]ensemble.Metrics{},
	}
	if err := readJSON(s.EncoderPath(dataset), b.Encoder); err != nil {
		return nil, err
	}
	if err := readJSON(s.MetricsPath(dataset), &b.Metrics); err != nil {
		return nil, err
	}
	for _, name := range ModelNames {
		m, err := s.loadModel(dataset, name)
		if err != nil {
			return nil, err
		}
		b.Models[name] = m
	}
	return b, nil
}

func (s *Store) loadModel(dataset, name string) (ensemble.Classifier, error) {
	f, err := os.Open(s.ModelPath(dataset, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ensemble.Decode(f, name)
}

// SaveModel writes a trained model.
func (s *Store) SaveModel(dataset, name string, c ensemble.Classifier) error {
	return s.write(s.ModelPath(dataset, name), func(w io.Writer) error {
		return ensemble.Encode(w, c)
	})
}

// SaveEncoder writes the label encoder of a dataset.
func (s *Store) SaveEncoder(dataset string, le *ensemble.LabelEncoder) error {
	return s.write(s.EncoderPath(dataset), func(w io.Writer) error {
		return writeJSON(w, le)
	})
}

// SaveMetrics writes the per-model evaluation metrics of a dataset.
func (s *Store) SaveMetrics(dataset string, m map[string]ensemble.Metrics) error {
	if m == nil {
		m = map[string]ensemble.Metrics{}
	}
	return s.write(s.MetricsPath(dataset), func(w io.Writer) error {
		return writeJSON(w, m)
	})
}

// write creates the file through a temporary sibling and a rename, so a
// reader never observes a half written artifact.
func (s *Store) write(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("unable to create the model directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
