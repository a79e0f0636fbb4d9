// Package worker maintains the daily statistics rollup from scoring events.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// counterWindow keeps live counters for today readable past midnight.
const counterWindow = 48 * time.Hour

// StatsWorker subscribes to scored-prediction events and folds each one into
// the per-day rollup table, mirroring the day's totals into cache counters
// for cheap live reads. Keeping the rollup off the request path means a
// slow statistics write never delays a scoring response.
type StatsWorker struct {
	bus   domain.EventBus
	repo  domain.Repository
	cache domain.Cache

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewStatsWorker creates a statistics worker. cache may be nil; live
// counters are skipped without it.
func NewStatsWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache) *StatsWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatsWorker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the scored-prediction topic.
func (w *StatsWorker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicPredictionScored, w.handleScored)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("statistics worker started",
		"topic", domain.TopicPredictionScored,
	)
	return nil
}

// handleScored folds one scored event into the daily rollup.
func (w *StatsWorker) handleScored(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.ScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse scored event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	date := event.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	delta := domain.DailyStats{
		Total:       1,
		TotalAmount: event.Amount,
	}
	if event.IsFraud {
		delta.FraudDetected = 1
		delta.FraudAmount = event.Amount
	} else {
		delta.Legitimate = 1
	}
	switch event.RiskLevel {
	case domain.RiskHigh:
		delta.HighRisk = 1
	case domain.RiskMedium:
		delta.MediumRisk = 1
	case domain.RiskLow:
		delta.LowRisk = 1
	}
	if event.AlertCreated {
		delta.AlertsGenerated = 1
	}

	if err := w.repo.IncrementDailyStats(ctx, date, delta); err != nil {
		slog.Error("failed to update daily statistics",
			"transaction_id", event.TransactionID,
			"date", date,
			"error", err,
		)
		return err
	}

	// Live counters are advisory; a cache failure never fails the event.
	if w.cache != nil {
		if _, err := w.cache.IncrementCounter(ctx, "scored:"+date, counterWindow); err != nil {
			slog.Warn("failed to increment scored counter", "date", date, "error", err)
		}
		if event.AlertCreated {
			if _, err := w.cache.IncrementCounter(ctx, "alerts:"+date, counterWindow); err != nil {
				slog.Warn("failed to increment alert counter", "date", date, "error", err)
			}
		}
	}

	slog.Debug("daily statistics updated",
		"transaction_id", event.TransactionID,
		"date", date,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *StatsWorker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("statistics worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *StatsWorker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
