package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

// created_date carries the YYYY-MM-DD bucket of created_at so the trend
// queries stay dialect-neutral.
const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    transaction_amount REAL NOT NULL,
    transaction_date TEXT NOT NULL,
    transaction_type TEXT NOT NULL,
    location TEXT NOT NULL,
    channel TEXT NOT NULL,
    customer_age REAL NOT NULL,
    customer_occupation TEXT NOT NULL,
    account_balance REAL NOT NULL,
    account_status TEXT NOT NULL,
    transaction_duration REAL NOT NULL,
    login_attempts REAL NOT NULL,
    previous_transaction_date TEXT NOT NULL,
    sender_country TEXT NOT NULL,
    receiver_country TEXT NOT NULL,
    sender_currency TEXT NOT NULL,
    receiver_currency TEXT NOT NULL,
    is_cross_border INTEGER NOT NULL DEFAULT 0,
    invalid_pin_status TEXT NOT NULL,
    pin_retry_limit REAL NOT NULL DEFAULT 0,
    pin_retry_count REAL NOT NULL DEFAULT 0,
    is_fraud INTEGER NOT NULL,
    fraud_probability REAL NOT NULL,
    risk_level TEXT NOT NULL,
    confidence REAL NOT NULL,
    action_recommended TEXT NOT NULL,
    reviewed INTEGER NOT NULL DEFAULT 0,
    review_notes TEXT,
    created_at TIMESTAMP NOT NULL,
    created_date TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_fraud ON transactions(is_fraud);
CREATE INDEX IF NOT EXISTS idx_transactions_risk ON transactions(risk_level);
CREATE INDEX IF NOT EXISTS idx_transactions_location ON transactions(location);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(created_date);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    fraud_probability REAL NOT NULL,
    risk_level TEXT NOT NULL,
    transaction_amount REAL NOT NULL,
    customer_age REAL NOT NULL,
    customer_occupation TEXT NOT NULL,
    alert_reason TEXT NOT NULL,
    recommended_action TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    reviewed INTEGER NOT NULL DEFAULT 0,
    reviewed_by TEXT,
    reviewed_at TIMESTAMP,
    resolution_notes TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_transaction ON alerts(transaction_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

const schemaDailyStatistics = `
CREATE TABLE IF NOT EXISTS daily_statistics (
    date TEXT PRIMARY KEY,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    fraud_detected INTEGER NOT NULL DEFAULT 0,
    legitimate_transactions INTEGER NOT NULL DEFAULT 0,
    total_amount REAL NOT NULL DEFAULT 0,
    fraud_amount REAL NOT NULL DEFAULT 0,
    high_risk_transactions INTEGER NOT NULL DEFAULT 0,
    medium_risk_transactions INTEGER NOT NULL DEFAULT 0,
    low_risk_transactions INTEGER NOT NULL DEFAULT 0,
    alerts_generated INTEGER NOT NULL DEFAULT 0
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaAlerts,
		schemaDailyStatistics,
	}
}
