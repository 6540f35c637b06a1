package ensemble

import (
	"fmt"
	"sort"
)

// LabelEncoder maps class names to the integer indices used by the classifiers.
// Classes are kept sorted, so "healthy" encodes to 0 and "parkinson" to 1.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder fits an encoder on the given labels.
func NewLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{}, 2)
	classes := make([]string, 0, 2)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Index returns the encoded value of a single label.
func (e *LabelEncoder) Index(label string) (int, error) {
	i := sort.SearchStrings(e.Classes, label)
	if i < len(e.Classes) && e.Classes[i] == label {
		return i, nil
	}
	return 0, fmt.Errorf("label encoder: unseen label %q", label)
}

// Transform encodes every label.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, err := e.Index(l)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// InverseTransform returns the class name of an encoded value.
func (e *LabelEncoder) InverseTransform(idx int) (string, error) {
	if idx < 0 || idx >= len(e.Classes) {
		return "", fmt.Errorf("label encoder: index %d out of range [0,%d)", idx, len(e.Classes))
	}
	return e.Classes[idx], nil
}
