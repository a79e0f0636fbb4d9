package domain

import (
	"time"
)

// Risk levels for human triage, derived from fraud probability.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Recommended dispositions derived from label + probability.
const (
	ActionAllow  = "ALLOW"
	ActionReview = "REVIEW"
	ActionBlock  = "BLOCK"
)

// Prediction is the scoring result for a single transaction.
// Probability is the raw positive-class probability in [0,1];
// Confidence is expressed in [0,100] relative to the stated label.
type Prediction struct {
	IsFraud     bool     `json:"is_fraud"`
	Probability float64  `json:"probability"`
	RiskLevel   string   `json:"risk_level"`
	Confidence  float64  `json:"confidence"`
	Action      string   `json:"action"`
	Flags       []string `json:"flags,omitempty"`
}

// TransactionRecord is a persisted scored transaction.
// Records are created once per scoring call that opts into persistence and
// never deleted by the service; only the review state is mutable.
type TransactionRecord struct {
	ID string `json:"id"`

	// Transaction information
	Amount          float64 `json:"transaction_amount"`
	TransactionDate string  `json:"transaction_date"`
	Type            string  `json:"transaction_type"`
	Location        string  `json:"location"`
	Channel         string  `json:"channel"`

	// Customer information
	CustomerAge        float64 `json:"customer_age"`
	CustomerOccupation string  `json:"customer_occupation"`
	AccountBalance     float64 `json:"account_balance"`
	AccountStatus      string  `json:"account_status"`

	// Transaction details
	Duration      float64 `json:"transaction_duration"`
	LoginAttempts float64 `json:"login_attempts"`
	PrevDate      string  `json:"previous_transaction_date"`

	// Geographic information
	SenderCountry    string `json:"sender_country"`
	ReceiverCountry  string `json:"receiver_country"`
	SenderCurrency   string `json:"sender_currency"`
	ReceiverCurrency string `json:"receiver_currency"`
	IsCrossBorder    bool   `json:"is_cross_border"`

	// Security information
	InvalidPinStatus string  `json:"invalid_pin_status"`
	PinRetryLimit    float64 `json:"invalid_pin_retry_limits"`
	PinRetryCount    float64 `json:"invalid_pin_retry_count"`

	// Prediction results
	IsFraud     bool    `json:"is_fraud"`
	Probability float64 `json:"fraud_probability"`
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	Action      string  `json:"action_recommended"`

	// Review state
	Reviewed    bool   `json:"reviewed"`
	ReviewNotes string `json:"review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTransactionRecord builds a record from a raw transaction and its
// prediction.
func NewTransactionRecord(id string, raw *RawTransaction, pred *Prediction) *TransactionRecord {
	now := time.Now().UTC()
	return &TransactionRecord{
		ID:                 id,
		Amount:             raw.TransactionAmount,
		TransactionDate:    raw.TransactionDate,
		Type:               raw.TransactionType,
		Location:           raw.Location,
		Channel:            raw.Channel,
		CustomerAge:        raw.CustomerAge,
		CustomerOccupation: raw.CustomerOccupation,
		AccountBalance:     raw.AccountBalance,
		AccountStatus:      raw.AccountStatus,
		Duration:           raw.TransactionDuration,
		LoginAttempts:      raw.LoginAttempts,
		PrevDate:           raw.PrevTransactionDate,
		SenderCountry:      raw.SenderCountry,
		ReceiverCountry:    raw.ReceiverCountry,
		SenderCurrency:     raw.SenderCurrency,
		ReceiverCurrency:   raw.ReceiverCurrency,
		IsCrossBorder:      raw.SenderCountry != raw.ReceiverCountry,
		InvalidPinStatus:   raw.InvalidPinStatus,
		PinRetryLimit:      raw.PinRetryLimit,
		PinRetryCount:      raw.PinRetryCount,
		IsFraud:            pred.IsFraud,
		Probability:        pred.Probability,
		RiskLevel:          pred.RiskLevel,
		Confidence:         pred.Confidence,
		Action:             pred.Action,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
