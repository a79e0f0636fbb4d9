package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Risk band thresholds on probability (lower inclusive, upper exclusive).
const (
	riskMediumFloor = 0.30
	riskHighFloor   = 0.60
)

// Action thresholds. Block is evaluated first and is stricter than review.
const (
	blockProbability  = 0.70
	reviewProbability = 0.50
)

// Alert generation thresholds: an alert is created for fraud predictions
// above AlertThreshold; above CriticalThreshold its severity is critical.
const (
	AlertThreshold    = 0.70
	CriticalThreshold = 0.90
)

// Classify maps a classifier label and probability to a risk level, a
// recommended action and a confidence value. Pure and deterministic; the
// label comes from the classifier and is never re-derived here.
func Classify(label bool, probability float64) (riskLevel, action string, confidence float64) {
	switch {
	case probability < riskMediumFloor:
		riskLevel = domain.RiskLow
	case probability < riskHighFloor:
		riskLevel = domain.RiskMedium
	default:
		riskLevel = domain.RiskHigh
	}

	switch {
	case label && probability > blockProbability:
		action = domain.ActionBlock
	case label || probability > reviewProbability:
		action = domain.ActionReview
	default:
		action = domain.ActionAllow
	}

	// Confidence is how sure the system is in its own stated label,
	// not the raw fraud probability.
	if label {
		confidence = probability * 100
	} else {
		confidence = (1 - probability) * 100
	}

	return riskLevel, action, confidence
}

// ShouldAlert reports whether a prediction warrants an alert record.
func ShouldAlert(label bool, probability float64) bool {
	return label && probability > AlertThreshold
}

// AlertSeverity returns the severity for an alerting prediction.
func AlertSeverity(probability float64) string {
	if probability > CriticalThreshold {
		return domain.SeverityCritical
	}
	return domain.SeverityHigh
}
