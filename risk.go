package pdscreen

// RiskLevel buckets the averaged Parkinson's probability of the drawing models.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
)

// Probability boundaries, all exclusive.
const (
	HighRiskThreshold     = 0.7
	ModerateRiskThreshold = 0.4
	EvaluationThreshold   = 0.6
	MonitorThreshold      = 0.4
)

// ClassifyRisk maps an averaged probability to its risk level.
func ClassifyRisk(p float64) RiskLevel {
	switch {
	case p > HighRiskThreshold:
		return RiskHigh
	case p > ModerateRiskThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Recommendation is the clinical interpretation printed after the consensus.
type Recommendation struct {
	Action  string `json:"action"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

const disclaimer = "This is a screening tool only. Clinical diagnosis requires\n" +
	"comprehensive medical evaluation by qualified healthcare professionals."

// Recommend returns the interpretation for an averaged probability.
func Recommend(p float64) Recommendation {
	switch {
	case p > EvaluationThreshold:
		return Recommendation{
			Action:  "evaluate",
			Summary: "Consider clinical evaluation for Parkinson's disease",
			Detail:  "Drawing patterns show characteristics consistent with motor impairment",
		}
	case p > MonitorThreshold:
		return Recommendation{
			Action:  "monitor",
			Summary: "Monitor for progression, consider follow-up testing",
			Detail:  "Some patterns suggest possible early motor changes",
		}
	default:
		return Recommendation{
			Action:  "normal",
			Summary: "Drawing patterns appear within normal range",
			Detail:  "No significant indicators of Parkinson's-related motor impairment",
		}
	}
}
