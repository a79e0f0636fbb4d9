package domain

import (
	"time"
)

// Alert severities. Only critical and high are generated at scoring time;
// an alert is created when is_fraud is true and probability exceeds 0.7,
// critical when it exceeds 0.9.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
)

// Alert lifecycle statuses.
const (
	AlertPending       = "pending"
	AlertInvestigating = "investigating"
	AlertResolved      = "resolved"
	AlertFalsePositive = "false_positive"
)

// Alert is a high-priority record generated for high-confidence fraud
// predictions. It references a TransactionRecord but has its own lifecycle.
type Alert struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	Severity      string  `json:"severity"`
	Probability   float64 `json:"fraud_probability"`
	RiskLevel     string  `json:"risk_level"`
	Amount        float64 `json:"transaction_amount"`
	CustomerAge   float64 `json:"customer_age"`
	Occupation    string  `json:"customer_occupation"`
	Reason        string  `json:"alert_reason"`
	Action        string  `json:"recommended_action"`

	Status          string     `json:"status"`
	Reviewed        bool       `json:"reviewed"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ValidAlertStatus reports whether s is a recognized lifecycle status.
func ValidAlertStatus(s string) bool {
	switch s {
	case AlertPending, AlertInvestigating, AlertResolved, AlertFalsePositive:
		return true
	}
	return false
}
