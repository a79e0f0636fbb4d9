package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/analytics"
	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline *scoring.Pipeline
	stats    *analytics.Service
	repo     domain.Repository
	cache    domain.Cache
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(pipeline *scoring.Pipeline, stats *analytics.Service, repo domain.Repository, cache domain.Cache, version string) *Handler {
	return &Handler{
		pipeline: pipeline,
		stats:    stats,
		repo:     repo,
		cache:    cache,
		version:  version,
	}
}

// PredictionView is the wire form of a prediction. Probability and
// confidence are expressed as percentages for dashboard consumers; the
// stored record keeps the raw [0,1] probability.
type PredictionView struct {
	IsFraud          bool     `json:"is_fraud"`
	FraudProbability float64  `json:"fraud_probability"`
	RiskLevel        string   `json:"risk_level"`
	Confidence       float64  `json:"confidence"`
	Action           string   `json:"recommended_action"`
	Flags            []string `json:"flags,omitempty"`
}

func newPredictionView(p *domain.Prediction) *PredictionView {
	return &PredictionView{
		IsFraud:          p.IsFraud,
		FraudProbability: roundPercent(p.Probability),
		RiskLevel:        p.RiskLevel,
		Confidence:       math.Round(p.Confidence*100) / 100,
		Action:           p.Action,
		Flags:            p.Flags,
	}
}

func roundPercent(probability float64) float64 {
	return math.Round(probability*10000) / 100
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	Prediction      *PredictionView `json:"prediction"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	AlertID         string          `json:"alert_id,omitempty"`
	SavedToDatabase bool            `json:"saved_to_database"`
	Warning         string          `json:"warning,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Predict handles POST /predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields before the pipeline is invoked
	var missing []string
	for _, name := range domain.RequiredFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "missing required fields",
			"missing": missing,
		})
		return
	}

	raw, err := decodeRaw(fields)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid field value: " + err.Error(),
		})
		return
	}

	outcome, err := h.pipeline.Predict(ctx, raw)
	if err != nil {
		h.writeScoringError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Prediction:      newPredictionView(outcome.Prediction),
		TransactionID:   outcome.TransactionID,
		AlertID:         outcome.AlertID,
		SavedToDatabase: outcome.Saved,
		Warning:         outcome.SaveError,
		Timestamp:       time.Now().UTC(),
	})
}

// BatchRequest is the request body for POST /predict/batch. Entries stay
// raw so a malformed item cannot fail the decode of its siblings.
type BatchRequest struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// BatchItemView is the per-transaction wire result of a batch call.
type BatchItemView struct {
	Index      int             `json:"transaction_id"`
	Prediction *PredictionView `json:"prediction,omitempty"`
	Amount     float64         `json:"amount,omitempty"`
	Type       string          `json:"type,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// PredictBatch handles POST /predict/batch requests. Items are scored
// without persistence; per-item failures are reported with their index.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions array is required and must not be empty",
		})
		return
	}

	inputs := make([]scoring.BatchInput, len(req.Transactions))
	for i, body := range req.Transactions {
		inputs[i] = decodeBatchItem(body)
	}

	items, summary, err := h.pipeline.PredictBatch(ctx, inputs)
	if err != nil {
		h.writeScoringError(w, err)
		return
	}

	views := make([]BatchItemView, len(items))
	for i, item := range items {
		views[i] = BatchItemView{
			Index:  item.Index,
			Amount: item.Amount,
			Type:   item.Type,
			Error:  item.Error,
		}
		if item.Prediction != nil {
			views[i].Prediction = newPredictionView(item.Prediction)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"results": views,
	})
}

// decodeBatchItem decodes and validates one batch entry. Failures stay
// confined to the entry: the returned input carries the error and the
// pipeline reports it against the item's index.
func decodeBatchItem(body json.RawMessage) scoring.BatchInput {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return scoring.BatchInput{Err: "invalid JSON object"}
	}

	var missing []string
	for _, name := range domain.RequiredFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return scoring.BatchInput{Err: "missing required fields: " + strings.Join(missing, ", ")}
	}

	raw, err := decodeRaw(fields)
	if err != nil {
		return scoring.BatchInput{Err: "invalid field value: " + err.Error()}
	}
	return scoring.BatchInput{Raw: raw}
}

// decodeRaw re-assembles the validated field map into a raw transaction.
func decodeRaw(fields map[string]json.RawMessage) (*domain.RawTransaction, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var raw domain.RawTransaction
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// writeScoringError maps pipeline errors to HTTP status codes. A feature
// shape mismatch is artifact drift corrupting every prediction: it surfaces
// with full detail rather than a generic message.
func (h *Handler) writeScoringError(w http.ResponseWriter, err error) {
	if errors.Is(err, scoring.ErrModelUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model artifacts not loaded",
		})
		return
	}

	var shapeErr *artifact.ShapeError
	if errors.As(err, &shapeErr) {
		slog.Error("feature shape mismatch", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Error("scoring failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "scoring failed: " + err.Error(),
	})
}

// Index returns the service banner and endpoint listing.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Kestrel Fraud Detection API",
		"version": h.version,
		"endpoints": map[string]string{
			"POST /predict":        "Score a single transaction",
			"POST /predict/batch":  "Score a batch of transactions",
			"GET /transactions":    "List scored transactions",
			"GET /alerts":          "List fraud alerts",
			"GET /stats/dashboard": "Combined dashboard overview",
			"GET /model-info":      "Loaded model details",
			"GET /example":         "Example scoring request body",
			"GET /health":          "Component health",
			"GET /ready":           "Scoring readiness",
		},
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	resp := map[string]any{
		"version":      h.version,
		"model_loaded": h.pipeline.Ready(),
	}

	// Check cache health and surface today's live counters
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		} else {
			today := time.Now().UTC().Format("2006-01-02")
			scored, _ := h.cache.GetCounter(r.Context(), "scored:"+today)
			alerts, _ := h.cache.GetCounter(r.Context(), "alerts:"+today)
			resp["today"] = map[string]int64{
				"scored": scored,
				"alerts": alerts,
			}
		}
	}

	resp["status"] = status
	writeJSON(w, http.StatusOK, resp)
}

// Ready returns whether the server is ready to score. The service runs
// without artifacts but must refuse scoring traffic until they load.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"error": "model artifacts not loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ModelInfo describes the loaded artifact bundle.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	bundle := h.pipeline.Bundle()
	if bundle == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model artifacts not loaded",
		})
		return
	}

	categorical := make(map[string]int)
	for _, field := range bundle.Encoders.Fields() {
		categorical[field] = len(bundle.Encoders.Classes(field))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model_type":         "decision_tree",
		"num_features":       domain.FeatureCount,
		"feature_names":      domain.FeatureNames,
		"tree_nodes":         len(bundle.Classifier.ChildrenLeft),
		"categorical_fields": categorical,
	})
}

// Example returns a valid scoring request body.
func (h *Handler) Example(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
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
	})
}

// ListTransactions returns scored transactions matching the query filters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	q := r.URL.Query()
	filter := domain.TransactionFilter{
		FraudOnly: q.Get("fraud_only") == "true",
		RiskLevel: q.Get("risk_level"),
		Type:      q.Get("type"),
		Location:  q.Get("location"),
		MinAmount: queryFloat(q.Get("min_amount")),
		MaxAmount: queryFloat(q.Get("max_amount")),
		Limit:     queryInt(q.Get("limit")),
		Offset:    queryInt(q.Get("offset")),
	}

	records, err := h.repo.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// GetTransaction retrieves a scored transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ReviewRequest is the request body for POST /transactions/{id}/review.
type ReviewRequest struct {
	Reviewed *bool  `json:"reviewed"`
	Notes    string `json:"notes"`
}

// ReviewTransaction marks a scored transaction as reviewed.
func (h *Handler) ReviewTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	reviewed := true
	if req.Reviewed != nil {
		reviewed = *req.Reviewed
	}

	if err := h.repo.UpdateReview(r.Context(), id, reviewed, req.Notes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to update review", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update review",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"reviewed":       reviewed,
	})
}

// ListAlerts returns alerts, optionally filtered by lifecycle status.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !domain.ValidAlertStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid alert status: " + status,
		})
		return
	}

	alerts, err := h.repo.ListAlerts(r.Context(), status, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alert, err := h.repo.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get alert",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertRequest is the request body for POST /alerts/{id}/update.
type UpdateAlertRequest struct {
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes"`
}

// UpdateAlert moves an alert through its lifecycle.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status is required",
		})
		return
	}

	err := h.repo.UpdateAlertStatus(r.Context(), id, req.Status, req.ReviewedBy, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
		default:
			slog.Error("failed to update alert", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update alert",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alert_id": id,
		"status":   req.Status,
	})
}

// Dashboard handles GET /stats/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.stats.Dashboard(r.Context())
	if err != nil {
		h.writeStatsError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// Trends handles GET /stats/trends?days=N.
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	points, err := h.stats.Trends(r.Context(), queryInt(r.URL.Query().Get("days")))
	if err != nil {
		h.writeStatsError(w, "trends", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trends": points,
		"count":  len(points),
	})
}

// Hotspots handles GET /stats/hotspots?limit=N.
func (h *Handler) Hotspots(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.Hotspots(r.Context(), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		h.writeStatsError(w, "hotspots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hotspots": counts,
		"count":    len(counts),
	})
}

// RiskDistribution handles GET /stats/risk-distribution.
func (h *Handler) RiskDistribution(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.stats.RiskDistribution(r.Context())
	if err != nil {
		h.writeStatsError(w, "risk distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"distribution": buckets,
	})
}

// TransactionTypes handles GET /stats/transaction-types.
func (h *Handler) TransactionTypes(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.TransactionTypes(r.Context())
	if err != nil {
		h.writeStatsError(w, "transaction types", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"types": stats,
	})
}

// AlertsSummary handles GET /stats/alerts/summary.
func (h *Handler) AlertsSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.AlertsSummary(r.Context())
	if err != nil {
		h.writeStatsError(w, "alerts summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": counts,
	})
}

// RecentTransactions handles GET /stats/recent-transactions?limit=N.
func (h *Handler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.stats.Recent(r.Context(), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		h.writeStatsError(w, "recent transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// DailyStats handles GET /stats/daily/{date}.
func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	stats, err := h.stats.Daily(r.Context(), date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no statistics recorded for " + date,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeStatsError(w http.ResponseWriter, what string, err error) {
	slog.Error("failed to compute "+what, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "failed to compute " + what,
	})
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func queryFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
