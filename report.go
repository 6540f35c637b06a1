package pdscreen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdscreen/pdscreen/ensemble"
	"github.com/pdscreen/pdscreen/utils"
)

// Verdict is the outcome of one drawing model.
type Verdict struct {
	Model      string            `json:"model"`
	Title      string            `json:"title"`
	Prediction string            `json:"prediction"`
	Parkinson  bool              `json:"parkinson"`
	Healthy    float64           `json:"healthy_probability"`
	Disease    float64           `json:"parkinson_probability"`
	Metrics    *ensemble.Metrics `json:"metrics,omitempty"`
}

// Consensus aggregates the verdicts of all drawing models.
type Consensus struct {
	Votes       int       `json:"votes"`
	Models      int       `json:"models"`
	Probability float64   `json:"average_probability"`
	Risk        RiskLevel `json:"risk_level"`
}

// NewConsensus counts the models predicting Parkinson's and averages their
// Parkinson's probabilities.
func NewConsensus(verdicts []Verdict) Consensus {
	c := Consensus{Models: len(verdicts)}
	if len(verdicts) == 0 {
		c.Risk = ClassifyRisk(0)
		return c
	}
	var sum float64
	for _, v := range verdicts {
		if v.Parkinson {
			c.Votes++
		}
		sum += v.Disease
	}
	c.Probability = sum / float64(len(verdicts))
	c.Risk = ClassifyRisk(c.Probability)
	return c
}

// Timing splits the analysis time between image preparation and model inference.
type Timing struct {
	Preprocessing time.Duration `json:"-"`
	Inference     time.Duration `json:"-"`

	PreprocessingMs float64 `json:"preprocessing_ms"`
	InferenceMs     float64 `json:"inference_ms"`
	TotalMs         float64 `json:"total_ms"`
}

func newTiming(pre, inf time.Duration) Timing {
	return Timing{
		Preprocessing:   pre,
		Inference:       inf,
		PreprocessingMs: millis(pre),
		InferenceMs:     millis(inf),
		TotalMs:         millis(pre + inf),
	}
}

// Total is the whole analysis time.
func (t Timing) Total() time.Duration { return t.Preprocessing + t.Inference }

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// DrawingReport is the result of analysing one spiral or wave drawing.
type DrawingReport struct {
	Image          string         `json:"image"`
	DrawingType    DrawingType    `json:"drawing_type"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	FeatureLen     int            `json:"feature_vector_size"`
	Timing         Timing         `json:"timing"`
	Verdicts       []Verdict      `json:"models"`
	Consensus      Consensus      `json:"consensus"`
	Recommendation Recommendation `json:"recommendation"`
}

const ruleWidth = 60

// WriteText prints the report in the layout of the command line tool.
func (r *DrawingReport) WriteText(w io.Writer) error {
	var sb strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintf(&sb, "\n%s\n", rule)
	fmt.Fprintf(&sb, "PARKINSON'S DISEASE ANALYSIS - %s DRAWING\n", strings.ToUpper(r.DrawingType.String()))
	fmt.Fprintf(&sb, "%s\n", rule)
	fmt.Fprintf(&sb, "Image: %s\n", r.Image)
	fmt.Fprintf(&sb, "Drawing Type: %s\n", r.DrawingType.Title())
	fmt.Fprintf(&sb, "Image Size: %dx%d\n", r.Width, r.Height)
	fmt.Fprintf(&sb, "Feature Vector Size: %d\n", r.FeatureLen)

	fmt.Fprintf(&sb, "\nTIMING ANALYSIS:\n")
	fmt.Fprintf(&sb, "Preprocessing Time: %s\n", utils.FormatMillis(r.Timing.Preprocessing))
	fmt.Fprintf(&sb, "Inference Time: %s\n", utils.FormatMillis(r.Timing.Inference))
	fmt.Fprintf(&sb, "Total Analysis Time: %s\n", utils.FormatMillis(r.Timing.Total()))

	for _, v := range r.Verdicts {
		fmt.Fprintf(&sb, "\n%s ANALYSIS:\n", strings.ToUpper(v.Title))
		fmt.Fprintf(&sb, "Prediction: %s\n", v.Prediction)
		fmt.Fprintf(&sb, "Confidence - Healthy: %s\n", utils.FormatPercent(v.Healthy))
		fmt.Fprintf(&sb, "Confidence - Parkinson's: %s\n", utils.FormatPercent(v.Disease))
		if v.Metrics != nil {
			fmt.Fprintf(&sb, "Model Accuracy: %s\n", utils.FormatPercent(v.Metrics.Accuracy))
			fmt.Fprintf(&sb, "Model Sensitivity: %s\n", utils.FormatPercent(v.Metrics.Sensitivity))
			fmt.Fprintf(&sb, "Model Specificity: %s\n", utils.FormatPercent(v.Metrics.Specificity))
		}
	}

	c := r.Consensus
	fmt.Fprintf(&sb, "\nCONSENSUS ANALYSIS:\n")
	fmt.Fprintf(&sb, "Models agreeing on Parkinson's: %d/%d\n", c.Votes, c.Models)
	fmt.Fprintf(&sb, "Average Parkinson's probability: %s\n", utils.FormatPercent(c.Probability))
	fmt.Fprintf(&sb, "Parkinson's Risk Level: %s\n", c.Risk)

	rec := r.Recommendation
	mark := "✅"
	switch rec.Action {
	case "evaluate":
		mark = "⚠️ "
	case "monitor":
		mark = "⚡"
	}
	fmt.Fprintf(&sb, "\nCLINICAL INTERPRETATION:\n")
	fmt.Fprintf(&sb, "%s RECOMMENDATION: %s\n", mark, rec.Summary)
	fmt.Fprintf(&sb, "   %s\n", rec.Detail)
	fmt.Fprintf(&sb, "\nNOTE: %s\n", disclaimer)
	fmt.Fprintf(&sb, "%s\n", rule)

	_, err := io.WriteString(w, sb.String())
	return err
}

// Handwriting labels.
const (
	LabelParkinson = "Parkinson's Disease"
	LabelHealthy   = "Healthy"
)

// HandwritingReport is the result of the deep handwriting model.
type HandwritingReport struct {
	Image       string  `json:"image"`
	Prediction  string  `json:"prediction"`
	Parkinson   bool    `json:"parkinson"`
	Confidence  float64 `json:"confidence"`
	Probability float64 `json:"raw_probability"`
	Timing      Timing  `json:"timing"`
}

// WriteText prints the handwriting result.
func (r *HandwritingReport) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Image: %s\nPrediction: %s\nConfidence: %s\nRaw probability: %.4f\nInference Time: %s\n",
		r.Image, r.Prediction, utils.FormatPercent(r.Confidence), r.Probability,
		utils.FormatMillis(r.Timing.Inference),
	)
	return err
}
