package domain

import (
	"context"
	"time"
)

// TransactionFilter narrows ListTransactions results.
// Zero values mean "no constraint".
type TransactionFilter struct {
	FraudOnly bool
	RiskLevel string
	Type      string
	Location  string
	MinAmount float64
	MaxAmount float64
	Limit     int
	Offset    int
}

// TransactionStats is the overall transaction aggregate.
type TransactionStats struct {
	Total            int64            `json:"total_transactions"`
	FraudCount       int64            `json:"fraud_count"`
	LegitimateCount  int64            `json:"legitimate_count"`
	FraudPercentage  float64          `json:"fraud_percentage"`
	RiskDistribution map[string]int64 `json:"risk_distribution"`
}

// AlertStats is the overall alert aggregate.
type AlertStats struct {
	Total          int64 `json:"total_alerts"`
	Pending        int64 `json:"pending_alerts"`
	Investigating  int64 `json:"investigating"`
	Resolved       int64 `json:"resolved_alerts"`
	FalsePositives int64 `json:"false_positives"`
}

// TrendPoint is one day of the scoring trend series. UnderReview counts
// transactions whose probability fell in the [0.30, 0.70] band.
type TrendPoint struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Total       int64  `json:"total"`
	Fraudulent  int64  `json:"fraudulent"`
	UnderReview int64  `json:"under_review"`
	Normal      int64  `json:"normal"`
}

// LocationCount is a fraud-by-location bucket.
type LocationCount struct {
	Location    string  `json:"location"`
	FraudCount  int64   `json:"fraud_count"`
	TotalAmount float64 `json:"total_amount"`
}

// RiskBucket is a risk-level distribution bucket.
type RiskBucket struct {
	RiskLevel string `json:"risk_level"`
	Count     int64  `json:"count"`
}

// TypeStats aggregates predictions per transaction type.
type TypeStats struct {
	Type           string  `json:"transaction_type"`
	Total          int64   `json:"total"`
	FraudCount     int64   `json:"fraud_count"`
	TotalAmount    float64 `json:"total_amount"`
	AvgProbability float64 `json:"avg_probability"`
}

// SeverityCount is an alert-severity summary bucket.
type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
	Pending  int64  `json:"pending"`
}

// DailyStats is the per-day rollup maintained by the statistics worker.
type DailyStats struct {
	Date            string  `json:"date"` // YYYY-MM-DD
	Total           int64   `json:"total_transactions"`
	FraudDetected   int64   `json:"fraud_detected"`
	Legitimate      int64   `json:"legitimate_transactions"`
	TotalAmount     float64 `json:"total_amount"`
	FraudAmount     float64 `json:"fraud_amount"`
	HighRisk        int64   `json:"high_risk_transactions"`
	MediumRisk      int64   `json:"medium_risk_transactions"`
	LowRisk         int64   `json:"low_risk_transactions"`
	AlertsGenerated int64   `json:"alerts_generated"`
}

// Repository defines the interface for durable storage of scored
// transactions, alerts and daily rollups, plus the read-side aggregates
// the analytics layer serves.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, rec *TransactionRecord) error
	GetTransaction(ctx context.Context, id string) (*TransactionRecord, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*TransactionRecord, error)
	UpdateReview(ctx context.Context, id string, reviewed bool, notes string) error

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ListAlerts(ctx context.Context, status string, limit int) ([]*Alert, error)
	UpdateAlertStatus(ctx context.Context, id, status, reviewedBy, notes string) error

	// Aggregates
	TransactionStats(ctx context.Context) (*TransactionStats, error)
	AlertStats(ctx context.Context) (*AlertStats, error)
	DailyTrends(ctx context.Context, since time.Time) ([]TrendPoint, error)
	FraudByLocation(ctx context.Context, limit int) ([]LocationCount, error)
	RiskDistribution(ctx context.Context) ([]RiskBucket, error)
	StatsByType(ctx context.Context) ([]TypeStats, error)
	AlertSummary(ctx context.Context) ([]SeverityCount, error)
	RecentTransactions(ctx context.Context, limit int) ([]*TransactionRecord, error)

	// Daily rollup maintained by the statistics worker
	IncrementDailyStats(ctx context.Context, date string, delta DailyStats) error
	GetDailyStats(ctx context.Context, date string) (*DailyStats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
