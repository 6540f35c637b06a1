package ensemble

import "errors"

// Metrics summarises a binary classifier on a held out set. Class 1 is the
// positive (Parkinson's) class.
type Metrics struct {
	Accuracy    float64 `json:"accuracy"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
	TN          int     `json:"tn"`
	FP          int     `json:"fp"`
	FN          int     `json:"fn"`
	TP          int     `json:"tp"`
}

// Evaluate builds the confusion matrix of the predictions and derives the
// rates from it. A rate whose denominator is zero is reported as 0.
func Evaluate(yTrue, yPred []int) (Metrics, error) {
	var m Metrics
	if len(yTrue) == 0 {
		return m, errors.New("metrics: empty evaluation set")
	}
	if len(yTrue) != len(yPred) {
		return m, errors.New("metrics: yTrue and yPred length mismatch")
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			m.TP++
		case yTrue[i] == 1:
			m.FN++
		case yPred[i] == 1:
			m.FP++
		default:
			m.TN++
		}
	}
	m.Accuracy = float64(m.TP+m.TN) / float64(len(yTrue))
	if m.TP+m.FN > 0 {
		m.Sensitivity = float64(m.TP) / float64(m.TP+m.FN)
	}
	if m.TN+m.FP > 0 {
		m.Specificity = float64(m.TN) / float64(m.TN+m.FP)
	}
	return m, nil
}
