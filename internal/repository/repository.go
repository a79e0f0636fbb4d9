// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const txColumns = `id, transaction_amount, transaction_date, transaction_type, location, channel,
	customer_age, customer_occupation, account_balance, account_status,
	transaction_duration, login_attempts, previous_transaction_date,
	sender_country, receiver_country, sender_currency, receiver_currency, is_cross_border,
	invalid_pin_status, pin_retry_limit, pin_retry_count,
	is_fraud, fraud_probability, risk_level, confidence, action_recommended,
	reviewed, review_notes, created_at, updated_at`

// SaveTransaction stores a scored transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, transaction_amount, transaction_date, transaction_type, location, channel,
			customer_age, customer_occupation, account_balance, account_status,
			transaction_duration, login_attempts, previous_transaction_date,
			sender_country, receiver_country, sender_currency, receiver_currency, is_cross_border,
			invalid_pin_status, pin_retry_limit, pin_retry_count,
			is_fraud, fraud_probability, risk_level, confidence, action_recommended,
			reviewed, review_notes, created_at, created_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.Amount, rec.TransactionDate, rec.Type, rec.Location, rec.Channel,
		rec.CustomerAge, rec.CustomerOccupation, rec.AccountBalance, rec.AccountStatus,
		rec.Duration, rec.LoginAttempts, rec.PrevDate,
		rec.SenderCountry, rec.ReceiverCountry, rec.SenderCurrency, rec.ReceiverCurrency, boolToInt(rec.IsCrossBorder),
		rec.InvalidPinStatus, rec.PinRetryLimit, rec.PinRetryCount,
		boolToInt(rec.IsFraud), rec.Probability, rec.RiskLevel, rec.Confidence, rec.Action,
		boolToInt(rec.Reviewed), rec.ReviewNotes,
		rec.CreatedAt, rec.CreatedAt.Format("2006-01-02"), rec.UpdatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`

	rec, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListTransactions retrieves transactions matching the filter,
// newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.TransactionRecord, error) {
	var conds []string
	var args []any

	if filter.FraudOnly {
		conds = append(conds, "is_fraud = 1")
	}
	if filter.RiskLevel != "" {
		conds = append(conds, "risk_level = ?")
		args = append(args, filter.RiskLevel)
	}
	if filter.Type != "" {
		conds = append(conds, "transaction_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.MinAmount > 0 {
		conds = append(conds, "transaction_amount >= ?")
		args = append(args, filter.MinAmount)
	}
	if filter.MaxAmount > 0 {
		conds = append(conds, "transaction_amount <= ?")
		args = append(args, filter.MaxAmount)
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// UpdateReview marks a transaction's review state.
func (r *SQLRepository) UpdateReview(ctx context.Context, id string, reviewed bool, notes string) error {
	query := `
		UPDATE transactions
		SET reviewed = ?, review_notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), boolToInt(reviewed), notes, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

const alertColumns = `id, transaction_id, severity, fraud_probability, risk_level,
	transaction_amount, customer_age, customer_occupation, alert_reason, recommended_action,
	status, reviewed, reviewed_by, reviewed_at, resolution_notes, created_at`

// SaveAlert stores an alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, transaction_id, severity, fraud_probability, risk_level,
			transaction_amount, customer_age, customer_occupation, alert_reason, recommended_action,
			status, reviewed, reviewed_by, reviewed_at, resolution_notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.TransactionID, alert.Severity, alert.Probability, alert.RiskLevel,
		alert.Amount, alert.CustomerAge, alert.Occupation, alert.Reason, alert.Action,
		alert.Status, boolToInt(alert.Reviewed), alert.ReviewedBy, alert.ReviewedAt, alert.ResolutionNotes,
		alert.CreatedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return alert, err
}

// ListAlerts retrieves alerts, optionally filtered by status, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, status string, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// UpdateAlertStatus moves an alert through its lifecycle.
func (r *SQLRepository) UpdateAlertStatus(ctx context.Context, id, status, reviewedBy, notes string) error {
	if !domain.ValidAlertStatus(status) {
		return fmt.Errorf("%w: unknown alert status %q", ErrInvalidInput, status)
	}

	query := `
		UPDATE alerts
		SET status = ?, reviewed = 1, reviewed_by = ?, reviewed_at = ?, resolution_notes = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, reviewedBy, time.Now().UTC(), notes, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// TransactionStats computes the overall transaction aggregate.
func (r *SQLRepository) TransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	stats := &domain.TransactionStats{
		RiskDistribution: make(map[string]int64),
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_fraud = 1 THEN 1 ELSE 0 END), 0)
		FROM transactions
	`
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.FraudCount); err != nil {
		return nil, err
	}

	stats.LegitimateCount = stats.Total - stats.FraudCount
	if stats.Total > 0 {
		stats.FraudPercentage = float64(stats.FraudCount) / float64(stats.Total) * 100
	}

	rows, err := r.db.QueryContext(ctx, `SELECT risk_level, COUNT(*) FROM transactions GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.RiskDistribution[level] = count
	}

	return stats, rows.Err()
}

// AlertStats computes the overall alert aggregate.
func (r *SQLRepository) AlertStats(ctx context.Context) (*domain.AlertStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'investigating' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'false_positive' THEN 1 ELSE 0 END), 0)
		FROM alerts
	`

	stats := &domain.AlertStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Investigating, &stats.Resolved, &stats.FalsePositives,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DailyTrends returns the per-day scoring series since the given time.
// The under-review band is probabilities in [0.30, 0.70].
func (r *SQLRepository) DailyTrends(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	query := `
		SELECT created_date,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN is_fraud = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fraud_probability >= 0.30 AND fraud_probability <= 0.70 THEN 1 ELSE 0 END), 0)
		FROM transactions
		WHERE created_date >= ?
		GROUP BY created_date
		ORDER BY created_date
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.TrendPoint
	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Date, &p.Total, &p.Fraudulent, &p.UnderReview); err != nil {
			return nil, err
		}
		p.Normal = p.Total - p.Fraudulent
		points = append(points, p)
	}

	return points, rows.Err()
}

// FraudByLocation returns the top fraud locations by detected count.
func (r *SQLRepository) FraudByLocation(ctx context.Context, limit int) ([]domain.LocationCount, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT location, COUNT(*), COALESCE(SUM(transaction_amount), 0)
		FROM transactions
		WHERE is_fraud = 1
		GROUP BY location
		ORDER BY COUNT(*) DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.LocationCount
	for rows.Next() {
		var c domain.LocationCount
		if err := rows.Scan(&c.Location, &c.FraudCount, &c.TotalAmount); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// RiskDistribution returns transaction counts per risk level.
func (r *SQLRepository) RiskDistribution(ctx context.Context) ([]domain.RiskBucket, error) {
	query := `
		SELECT risk_level, COUNT(*)
		FROM transactions
		GROUP BY risk_level
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []domain.RiskBucket
	for rows.Next() {
		var b domain.RiskBucket
		if err := rows.Scan(&b.RiskLevel, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}

	return buckets, rows.Err()
}

// StatsByType aggregates predictions per transaction type.
func (r *SQLRepository) StatsByType(ctx context.Context) ([]domain.TypeStats, error) {
	query := `
		SELECT transaction_type,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN is_fraud = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(transaction_amount), 0),
		       COALESCE(AVG(fraud_probability), 0)
		FROM transactions
		GROUP BY transaction_type
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.TypeStats
	for rows.Next() {
		var s domain.TypeStats
		if err := rows.Scan(&s.Type, &s.Total, &s.FraudCount, &s.TotalAmount, &s.AvgProbability); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// AlertSummary returns alert counts per severity.
func (r *SQLRepository) AlertSummary(ctx context.Context) ([]domain.SeverityCount, error) {
	query := `
		SELECT severity,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM alerts
		GROUP BY severity
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.SeverityCount
	for rows.Next() {
		var c domain.SeverityCount
		if err := rows.Scan(&c.Severity, &c.Count, &c.Pending); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// RecentTransactions returns the latest scored transactions.
func (r *SQLRepository) RecentTransactions(ctx context.Context, limit int) ([]*domain.TransactionRecord, error) {
	return r.ListTransactions(ctx, domain.TransactionFilter{Limit: limit})
}

// IncrementDailyStats folds a delta into the per-day rollup, creating the
// row on first use. Concurrent increments are safe: the upsert is a single
// statement.
func (r *SQLRepository) IncrementDailyStats(ctx context.Context, date string, delta domain.DailyStats) error {
	if date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO daily_statistics (
			date, total_transactions, fraud_detected, legitimate_transactions,
			total_amount, fraud_amount, high_risk_transactions,
			medium_risk_transactions, low_risk_transactions, alerts_generated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_transactions = daily_statistics.total_transactions + excluded.total_transactions,
			fraud_detected = daily_statistics.fraud_detected + excluded.fraud_detected,
			legitimate_transactions = daily_statistics.legitimate_transactions + excluded.legitimate_transactions,
			total_amount = daily_statistics.total_amount + excluded.total_amount,
			fraud_amount = daily_statistics.fraud_amount + excluded.fraud_amount,
			high_risk_transactions = daily_statistics.high_risk_transactions + excluded.high_risk_transactions,
			medium_risk_transactions = daily_statistics.medium_risk_transactions + excluded.medium_risk_transactions,
			low_risk_transactions = daily_statistics.low_risk_transactions + excluded.low_risk_transactions,
			alerts_generated = daily_statistics.alerts_generated + excluded.alerts_generated
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		date, delta.Total, delta.FraudDetected, delta.Legitimate,
		delta.TotalAmount, delta.FraudAmount, delta.HighRisk,
		delta.MediumRisk, delta.LowRisk, delta.AlertsGenerated,
	)
	return err
}

// GetDailyStats retrieves the rollup for one day.
func (r *SQLRepository) GetDailyStats(ctx context.Context, date string) (*domain.DailyStats, error) {
	query := `
		SELECT date, total_transactions, fraud_detected, legitimate_transactions,
		       total_amount, fraud_amount, high_risk_transactions,
		       medium_risk_transactions, low_risk_transactions, alerts_generated
		FROM daily_statistics
		WHERE date = ?
	`

	var s domain.DailyStats
	err := r.db.QueryRowContext(ctx, r.rebind(query), date).Scan(
		&s.Date, &s.Total, &s.FraudDetected, &s.Legitimate,
		&s.TotalAmount, &s.FraudAmount, &s.HighRisk,
		&s.MediumRisk, &s.LowRisk, &s.AlertsGenerated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	var crossBorder, isFraud, reviewed int
	var notes sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Amount, &rec.TransactionDate, &rec.Type, &rec.Location, &rec.Channel,
		&rec.CustomerAge, &rec.CustomerOccupation, &rec.AccountBalance, &rec.AccountStatus,
		&rec.Duration, &rec.LoginAttempts, &rec.PrevDate,
		&rec.SenderCountry, &rec.ReceiverCountry, &rec.SenderCurrency, &rec.ReceiverCurrency, &crossBorder,
		&rec.InvalidPinStatus, &rec.PinRetryLimit, &rec.PinRetryCount,
		&isFraud, &rec.Probability, &rec.RiskLevel, &rec.Confidence, &rec.Action,
		&reviewed, &notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.IsCrossBorder = crossBorder == 1
	rec.IsFraud = isFraud == 1
	rec.Reviewed = reviewed == 1
	rec.ReviewNotes = notes.String

	return &rec, nil
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var alert domain.Alert
	var reviewed int
	var reviewedBy, notes sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&alert.ID, &alert.TransactionID, &alert.Severity, &alert.Probability, &alert.RiskLevel,
		&alert.Amount, &alert.CustomerAge, &alert.Occupation, &alert.Reason, &alert.Action,
		&alert.Status, &reviewed, &reviewedBy, &reviewedAt, &notes, &alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Reviewed = reviewed == 1
	alert.ReviewedBy = reviewedBy.String
	alert.ResolutionNotes = notes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		alert.ReviewedAt = &t
	}

	return &alert, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
