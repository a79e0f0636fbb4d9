//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel fraud
// detection scoring service.
//
// These tests verify the COMPLETE scoring pipeline:
//
//	Raw Transaction → Feature Engineering → Classifier → Policy → Persistence
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The tests assume a running Kestrel instance loaded with the DEMO artifact
// bundle (written by cmd/seed/main.go):
//
//	go run cmd/seed/main.go -dir ./model
//	KESTREL_MODEL_DIR=./model go run cmd/kestrel/main.go
//
// The demo tree splits on three engineered features:
//
//	| Feature                | Source                                      |
//	|------------------------|---------------------------------------------|
//	| IsNightTime            | TransactionDate hour >= 22 or < 6           |
//	| AmountToBalanceRatio   | TransactionAmount / AccountBalance          |
//	| IsCrossBorder          | Sender Country != Receiver Country          |
//
// Daytime low-ratio transactions score p=0.05 (Low/ALLOW); night-time
// cross-border transactions score p=0.95 (High/BLOCK + critical alert).
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// PredictResponse is what POST /predict returns
type PredictResponse struct {
	Prediction struct {
		IsFraud          bool     `json:"is_fraud"`
		FraudProbability float64  `json:"fraud_probability"` // percent
		RiskLevel        string   `json:"risk_level"`
		Confidence       float64  `json:"confidence"`
		Action           string   `json:"recommended_action"`
		Flags            []string `json:"flags"`
	} `json:"prediction"`
	TransactionID   string `json:"transaction_id"`
	AlertID         string `json:"alert_id"`
	SavedToDatabase bool   `json:"saved_to_database"`
	Warning         string `json:"warning"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func baseTransaction() map[string]any {
	return map[string]any{
		"TransactionAmount":        150.75,
		"TransactionDate":          "15/09/2024 14:30",
		"TransactionType":          "Debit",
		"Location":                 "London",
		"Channel":                  "Online",
		"CustomerAge":              34,
		"CustomerOccupation":       "Engineer",
		"TransactionDuration":      45,
		"LoginAttempts":            1,
		"AccountBalance":           5230.50,
		"PreviousTransactionDate":  "14/09/2024 09:15",
		"Sender Country":           "GB",
		"Receiver Country":         "GB",
		"Sender Currency":          "GBP",
		"Receiver Currency":        "GBP",
		"Account Status":           "Active",
		"Invalid Pin Status":       "Valid",
		"Invalid pin retry limits": 3,
		"Invalid pin retry count":  0,
	}
}

func doPost(t *testing.T, config TestConfig, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func predict(t *testing.T, config TestConfig, payload map[string]any) PredictResponse {
	t.Helper()

	resp, body := doPost(t, config, "/predict", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result PredictResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

func getJSON(t *testing.T, config TestConfig, path string, dst any) int {
	t.Helper()

	resp, err := http.Get(config.BaseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, dst); err != nil {
			t.Fatalf("Failed to unmarshal %s: %v (body: %s)", path, err, string(body))
		}
	}
	return resp.StatusCode
}

// ============================================================================
// SCENARIO 1: Legitimate Daytime Transaction (No Alert)
// ============================================================================

func TestLegitimateTransaction_NoAlert(t *testing.T) {
	/*
	   SCENARIO: A regular £150 daytime debit, same-country, low balance ratio

	   EXPECTED BEHAVIOR:
	   - IsNightTime = 0 (14:30), ratio ≈ 0.03, domestic
	   - Demo tree leaf: p = 0.05 → is_fraud false
	   - Policy: risk Low (< 0.30), action ALLOW, confidence 95

	   FINAL: persisted transaction, no alert
	*/
	config := getTestConfig()

	result := predict(t, config, baseTransaction())

	if result.Prediction.IsFraud {
		t.Error("Expected non-fraud prediction")
	}
	if result.Prediction.RiskLevel != "Low" {
		t.Errorf("Expected risk Low, got %s", result.Prediction.RiskLevel)
	}
	if result.Prediction.Action != "ALLOW" {
		t.Errorf("Expected action ALLOW, got %s", result.Prediction.Action)
	}
	if !result.SavedToDatabase || result.TransactionID == "" {
		t.Errorf("Expected persisted transaction, got %+v", result)
	}
	if result.AlertID != "" {
		t.Errorf("Expected no alert, got %s", result.AlertID)
	}

	t.Logf("✓ Legitimate transaction: p=%.2f%%, risk=%s, action=%s",
		result.Prediction.FraudProbability, result.Prediction.RiskLevel, result.Prediction.Action)
}

// ============================================================================
// SCENARIO 2: Night-Time Cross-Border Transaction (Alert)
// ============================================================================

func TestNightCrossBorder_Alert(t *testing.T) {
	/*
	   SCENARIO: 23:30 cross-border transfer draining most of the balance

	   EXPECTED BEHAVIOR:
	   - IsNightTime = 1, IsCrossBorder = 1
	   - Demo tree leaf: p = 0.95 → is_fraud true
	   - Policy: risk High (>= 0.60), action BLOCK (fraud and p > 0.70)
	   - Alert: created (fraud and p > 0.70), severity critical (p > 0.90)
	   - Flags: night_cross_border and high_value should both fire
	*/
	config := getTestConfig()

	payload := baseTransaction()
	payload["TransactionDate"] = "15/09/2024 23:30"
	payload["PreviousTransactionDate"] = "15/09/2024 22:00"
	payload["Receiver Country"] = "US"
	payload["Receiver Currency"] = "USD"
	payload["TransactionAmount"] = 4800.0
	payload["AccountBalance"] = 5200.0

	result := predict(t, config, payload)

	if !result.Prediction.IsFraud {
		t.Error("Expected fraud prediction")
	}
	if result.Prediction.RiskLevel != "High" {
		t.Errorf("Expected risk High, got %s", result.Prediction.RiskLevel)
	}
	if result.Prediction.Action != "BLOCK" {
		t.Errorf("Expected action BLOCK, got %s", result.Prediction.Action)
	}
	if result.AlertID == "" {
		t.Error("Expected alert for high-confidence fraud")
	}
	if len(result.Prediction.Flags) == 0 {
		t.Error("Expected triage flags on a night cross-border drain")
	}

	t.Logf("✓ Fraud alerted: p=%.2f%%, flags=%v, alert=%s",
		result.Prediction.FraudProbability, result.Prediction.Flags, result.AlertID)
}

// ============================================================================
// SCENARIO 3: Persistence Round-Trip
// ============================================================================

func TestPredictionPersistence_RoundTrip(t *testing.T) {
	/*
	   SCENARIO: Score a transaction, then fetch it back by ID

	   WHY THIS TEST:
	   The scoring response and the stored record travel different paths
	   (response carries a percent, the record the raw probability); both
	   must describe the same prediction.
	*/
	config := getTestConfig()

	result := predict(t, config, baseTransaction())
	if result.TransactionID == "" {
		t.Fatal("Missing transaction_id")
	}

	var record struct {
		ID          string  `json:"id"`
		Location    string  `json:"location"`
		IsFraud     bool    `json:"is_fraud"`
		Probability float64 `json:"fraud_probability"`
		RiskLevel   string  `json:"risk_level"`
	}
	code := getJSON(t, config, "/transactions/"+result.TransactionID, &record)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 fetching stored record, got %d", code)
	}

	if record.IsFraud != result.Prediction.IsFraud || record.RiskLevel != result.Prediction.RiskLevel {
		t.Errorf("Stored record diverges from response: %+v vs %+v", record, result.Prediction)
	}
	if record.Probability < 0 || record.Probability > 1 {
		t.Errorf("Stored probability out of [0,1]: %v", record.Probability)
	}

	t.Logf("✓ Round-trip: id=%s, stored p=%.4f", record.ID, record.Probability)
}

// ============================================================================
// SCENARIO 4: Batch Scoring
// ============================================================================

func TestBatchScoring_Summary(t *testing.T) {
	/*
	   SCENARIO: One fraudulent transaction among legitimate siblings

	   EXPECTED BEHAVIOR:
	   - Batch is scored without persistence
	   - Summary counts 1 fraud / 2 legitimate
	   - Items are reported with 1-based indices
	*/
	config := getTestConfig()

	fraud := baseTransaction()
	fraud["TransactionDate"] = "15/09/2024 23:30"
	fraud["Receiver Country"] = "US"
	fraud["TransactionAmount"] = 4800.0
	fraud["AccountBalance"] = 5200.0

	resp, body := doPost(t, config, "/predict/batch", map[string]any{
		"transactions": []map[string]any{baseTransaction(), fraud, baseTransaction()},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Summary struct {
			Total         int `json:"total_transactions"`
			Processed     int `json:"processed"`
			FraudDetected int `json:"fraud_detected"`
			Legitimate    int `json:"legitimate"`
		} `json:"summary"`
		Results []struct {
			Index int `json:"transaction_id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if result.Summary.Total != 3 || result.Summary.FraudDetected != 1 {
		t.Errorf("Summary = %+v, want 3 total / 1 fraud", result.Summary)
	}
	if len(result.Results) != 3 || result.Results[0].Index != 1 {
		t.Errorf("Results not 1-indexed: %+v", result.Results)
	}

	t.Logf("✓ Batch: %d processed, %d fraud", result.Summary.Processed, result.Summary.FraudDetected)
}

// ============================================================================
// SCENARIO 5: Input Validation
// ============================================================================

func TestMissingFields_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing required raw fields

	   EXPECTED: HTTP 400 before the pipeline is invoked, naming the fields
	*/
	config := getTestConfig()

	payload := baseTransaction()
	delete(payload, "TransactionAmount")
	delete(payload, "Account Status")

	resp, body := doPost(t, config, "/predict", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing fields, got %d", resp.StatusCode)
	}

	var errResp struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Missing) != 2 {
		t.Errorf("Expected 2 missing fields listed, got %v", errResp.Missing)
	}

	t.Logf("✓ Validation: missing fields → HTTP %d, %v", resp.StatusCode, errResp.Missing)
}

func TestEmptyBatch_Error(t *testing.T) {
	config := getTestConfig()

	resp, _ := doPost(t, config, "/predict/batch", map[string]any{"transactions": []any{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation: empty batch → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 6: Alert Lifecycle
// ============================================================================

func TestAlertLifecycle(t *testing.T) {
	/*
	   SCENARIO: Fraud creates a pending alert; an analyst investigates and
	   resolves it.

	   pending → investigating → resolved
	*/
	config := getTestConfig()

	payload := baseTransaction()
	payload["TransactionDate"] = "15/09/2024 23:30"
	payload["Receiver Country"] = "US"
	payload["TransactionAmount"] = 4800.0
	payload["AccountBalance"] = 5200.0

	result := predict(t, config, payload)
	if result.AlertID == "" {
		t.Fatal("Expected alert for fraudulent transaction")
	}

	for _, status := range []string{"investigating", "resolved"} {
		resp, body := doPost(t, config, "/alerts/"+result.AlertID+"/update", map[string]any{
			"status":      status,
			"reviewed_by": "integration-test",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 updating alert to %s, got %d: %s", status, resp.StatusCode, string(body))
		}
	}

	var alert struct {
		Status     string `json:"status"`
		ReviewedBy string `json:"reviewed_by"`
	}
	code := getJSON(t, config, "/alerts/"+result.AlertID, &alert)
	if code != http.StatusOK || alert.Status != "resolved" {
		t.Errorf("Expected resolved alert, got code %d, %+v", code, alert)
	}

	t.Logf("✓ Alert lifecycle complete: %s → %s", result.AlertID, alert.Status)
}

// ============================================================================
// SCENARIO 7: Daily Rollup
// ============================================================================

func TestDailyRollup_UpdatedByWorker(t *testing.T) {
	/*
	   SCENARIO: Scoring calls feed the statistics worker through the event
	   bus; the daily rollup for today must reflect them.

	   The worker is asynchronous, so poll briefly before asserting.
	*/
	config := getTestConfig()

	predict(t, config, baseTransaction())
	today := time.Now().UTC().Format("2006-01-02")

	var stats struct {
		Total int64 `json:"total_transactions"`
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if code := getJSON(t, config, "/stats/daily/"+today, &stats); code == http.StatusOK && stats.Total > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if stats.Total == 0 {
		t.Error("Daily rollup was not updated by the statistics worker")
	}

	t.Logf("✓ Daily rollup: %d transactions on %s", stats.Total, today)
}

// ============================================================================
// SCENARIO 8: Service Health
// ============================================================================

func TestHealthAndReadiness(t *testing.T) {
	config := getTestConfig()

	var health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if code := getJSON(t, config, "/health", &health); code != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d", code)
	}
	if !health.ModelLoaded {
		t.Fatal("Model artifacts not loaded; seed a demo bundle with cmd/seed")
	}

	if code := getJSON(t, config, "/ready", nil); code != http.StatusOK {
		t.Errorf("Expected 200 from /ready, got %d", code)
	}

	t.Logf("✓ Service healthy: status=%s, model_loaded=%v", health.Status, health.ModelLoaded)
}
