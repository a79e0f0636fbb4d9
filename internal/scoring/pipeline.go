package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/triage"
)

var tracer = otel.Tracer("kestrel-scoring")

// Pipeline runs the full scoring path: normalize, encode, score, classify,
// flag, then best-effort persistence and event publication.
//
// Persistence is fire-and-forget relative to the result: a failed write is
// surfaced on the outcome but never invalidates the computed prediction.
type Pipeline struct {
	normalizer *feature.Normalizer
	engine     *Engine
	flags      *triage.Engine
	repo       domain.Repository
	bus        domain.EventBus
}

// NewPipeline wires the scoring pipeline. flags, repo and bus may be nil;
// the corresponding steps are skipped.
func NewPipeline(engine *Engine, flags *triage.Engine, repo domain.Repository, bus domain.EventBus) *Pipeline {
	var normalizer *feature.Normalizer
	if engine.Ready() {
		normalizer = feature.NewNormalizer(engine.Bundle().Encoders)
	}
	return &Pipeline{
		normalizer: normalizer,
		engine:     engine,
		flags:      flags,
		repo:       repo,
		bus:        bus,
	}
}

// Ready reports whether the pipeline can score.
func (p *Pipeline) Ready() bool {
	return p.engine.Ready()
}

// Bundle exposes the loaded model artifacts (nil when unready).
func (p *Pipeline) Bundle() *artifact.Bundle {
	return p.engine.Bundle()
}

// Score runs normalize → score → classify for one transaction without
// persisting anything. medianHours carries the batch-wide gap median; nil
// for single-transaction calls.
func (p *Pipeline) Score(ctx context.Context, raw *domain.RawTransaction, medianHours *float64) (*domain.Prediction, *domain.FeatureRecord, error) {
	if !p.engine.Ready() {
		return nil, nil, ErrModelUnavailable
	}

	ctx, span := tracer.Start(ctx, "scoring.score")
	defer span.End()

	rec, err := p.normalizer.Normalize(raw, medianHours)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize transaction: %w", err)
	}

	label, probability, err := p.engine.Score(rec)
	if err != nil {
		return nil, nil, err
	}

	riskLevel, action, confidence := Classify(label, probability)
	pred := &domain.Prediction{
		IsFraud:     label,
		Probability: probability,
		RiskLevel:   riskLevel,
		Confidence:  confidence,
		Action:      action,
	}

	if p.flags != nil {
		pred.Flags = p.flags.Evaluate(rec, pred)
	}

	span.SetAttributes(
		attribute.Bool("prediction.is_fraud", pred.IsFraud),
		attribute.Float64("prediction.probability", pred.Probability),
		attribute.String("prediction.action", pred.Action),
	)

	return pred, rec, nil
}

// Outcome is the result of a persisted scoring call.
type Outcome struct {
	Prediction    *domain.Prediction
	TransactionID string
	AlertID       string
	Saved         bool
	SaveError     string
}

// Predict scores a single transaction and persists it best-effort,
// creating an alert for high-confidence fraud predictions.
func (p *Pipeline) Predict(ctx context.Context, raw *domain.RawTransaction) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "scoring.predict")
	defer span.End()

	pred, rec, err := p.Score(ctx, raw, nil)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Prediction: pred}
	if p.repo == nil {
		return outcome, nil
	}

	record := domain.NewTransactionRecord(uuid.New().String(), raw, pred)
	if err := p.repo.SaveTransaction(ctx, record); err != nil {
		// The prediction stands; report the write failure alongside it.
		slog.Error("failed to save transaction", "error", err)
		outcome.SaveError = "transaction not saved"
		return outcome, nil
	}
	outcome.Saved = true
	outcome.TransactionID = record.ID

	alertCreated := false
	if ShouldAlert(pred.IsFraud, pred.Probability) {
		alert := p.buildAlert(record, pred, rec)
		if err := p.repo.SaveAlert(ctx, alert); err != nil {
			// Orphan transaction without its alert: acceptable, but it
			// must be reported, not silently dropped.
			slog.Error("failed to save alert", "transaction_id", record.ID, "error", err)
			outcome.SaveError = "alert not saved"
		} else {
			outcome.AlertID = alert.ID
			alertCreated = true
			p.publishAlert(ctx, alert)
		}
	}

	p.publishScored(ctx, record, alertCreated)

	return outcome, nil
}

// BatchItem is the per-transaction result of a batch call. Failed items
// carry Error and leave Prediction nil.
type BatchItem struct {
	Index      int                `json:"transaction_id"`
	Prediction *domain.Prediction `json:"prediction,omitempty"`
	Amount     float64            `json:"amount,omitempty"`
	Type       string             `json:"type,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// BatchSummary aggregates a batch result.
type BatchSummary struct {
	Total           int     `json:"total_transactions"`
	Processed       int     `json:"processed"`
	Failed          int     `json:"failed"`
	FraudDetected   int     `json:"fraud_detected"`
	Legitimate      int     `json:"legitimate"`
	FraudPercentage float64 `json:"fraud_percentage"`
}

// BatchInput is one entry of a batch call. Entries that failed decoding or
// validation upstream carry Err instead of a transaction; they occupy their
// position in the batch so sibling indices stay stable.
type BatchInput struct {
	Raw *domain.RawTransaction
	Err string
}

// PredictBatch scores a batch sequentially without persistence. One
// malformed transaction must not prevent scoring of its siblings: failures
// are reported per item with their index, whether they arrive pre-failed
// from decoding or fail during scoring.
//
// The gap median for missing previous-transaction timestamps is computed
// once over the decodable part of the batch and shared by every item
// needing substitution.
func (p *Pipeline) PredictBatch(ctx context.Context, inputs []BatchInput) ([]BatchItem, *BatchSummary, error) {
	if !p.engine.Ready() {
		return nil, nil, ErrModelUnavailable
	}

	ctx, span := tracer.Start(ctx, "scoring.predict_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(inputs)))

	raws := make([]*domain.RawTransaction, 0, len(inputs))
	for _, in := range inputs {
		if in.Raw != nil {
			raws = append(raws, in.Raw)
		}
	}
	medianHours := feature.BatchMedianHours(raws)

	items := make([]BatchItem, len(inputs))
	summary := &BatchSummary{Total: len(inputs)}

	for i, in := range inputs {
		item := BatchItem{Index: i + 1}

		if in.Raw == nil {
			item.Error = in.Err
			if item.Error == "" {
				item.Error = "empty transaction"
			}
			summary.Failed++
			items[i] = item
			continue
		}

		pred, _, err := p.Score(ctx, in.Raw, medianHours)
		if err != nil {
			item.Error = err.Error()
			summary.Failed++
		} else {
			item.Prediction = pred
			item.Amount = in.Raw.TransactionAmount
			item.Type = in.Raw.TransactionType
			summary.Processed++
			if pred.IsFraud {
				summary.FraudDetected++
			} else {
				summary.Legitimate++
			}
		}
		items[i] = item
	}

	if summary.Processed > 0 {
		summary.FraudPercentage = float64(summary.FraudDetected) / float64(summary.Processed) * 100
	}

	return items, summary, nil
}

func (p *Pipeline) buildAlert(record *domain.TransactionRecord, pred *domain.Prediction, rec *domain.FeatureRecord) *domain.Alert {
	reason := fmt.Sprintf("High fraud probability: %.2f%%", pred.Probability*100)
	for _, flag := range pred.Flags {
		reason += "; " + flag
	}

	return &domain.Alert{
		ID:            uuid.New().String(),
		TransactionID: record.ID,
		Severity:      AlertSeverity(pred.Probability),
		Probability:   pred.Probability,
		RiskLevel:     pred.RiskLevel,
		Amount:        record.Amount,
		CustomerAge:   record.CustomerAge,
		Occupation:    record.CustomerOccupation,
		Reason:        reason,
		Action:        pred.Action,
		Status:        domain.AlertPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func (p *Pipeline) publishScored(ctx context.Context, record *domain.TransactionRecord, alertCreated bool) {
	if p.bus == nil {
		return
	}
	event := domain.ScoredEvent{
		TransactionID: record.ID,
		Date:          record.CreatedAt.Format("2006-01-02"),
		Amount:        record.Amount,
		IsFraud:       record.IsFraud,
		RiskLevel:     record.RiskLevel,
		AlertCreated:  alertCreated,
	}
	payload, _ := json.Marshal(event)
	if err := p.bus.Publish(ctx, domain.TopicPredictionScored, payload); err != nil {
		slog.Warn("failed to publish scored event", "transaction_id", record.ID, "error", err)
	}
}

func (p *Pipeline) publishAlert(ctx context.Context, alert *domain.Alert) {
	if p.bus == nil {
		return
	}
	event := domain.AlertEvent{
		AlertID:       alert.ID,
		TransactionID: alert.TransactionID,
		Severity:      alert.Severity,
		Probability:   alert.Probability,
		Amount:        alert.Amount,
		Reason:        alert.Reason,
		Action:        alert.Action,
	}
	payload, _ := json.Marshal(event)
	if err := p.bus.Publish(ctx, domain.TopicAlertCreated, payload); err != nil {
		slog.Warn("failed to publish alert event", "alert_id", alert.ID, "error", err)
	}
}
