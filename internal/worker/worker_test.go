package worker

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "worker-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func publishScored(t *testing.T, b domain.EventBus, event domain.ScoredEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	if err := b.Publish(context.Background(), domain.TopicPredictionScored, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func TestStatsWorker(t *testing.T) {
	repo := newTestRepo(t)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	local := cache.NewLRUCache(100)
	w := NewStatsWorker(eventBus, repo, local)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	date := "2024-09-15"

	publishScored(t, eventBus, domain.ScoredEvent{
		TransactionID: "tx-1",
		Date:          date,
		Amount:        150,
		IsFraud:       false,
		RiskLevel:     domain.RiskLow,
	})
	publishScored(t, eventBus, domain.ScoredEvent{
		TransactionID: "tx-2",
		Date:          date,
		Amount:        4800,
		IsFraud:       true,
		RiskLevel:     domain.RiskHigh,
		AlertCreated:  true,
	})

	// The rollup is written asynchronously; poll until both events land.
	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	var stats *domain.DailyStats
	for time.Now().Before(deadline) {
		s, err := repo.GetDailyStats(ctx, date)
		if err == nil && s.Total == 2 {
			stats = s
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if stats == nil {
		t.Fatal("timeout waiting for daily statistics")
	}

	if stats.FraudDetected != 1 || stats.Legitimate != 1 {
		t.Errorf("fraud split = %d/%d, want 1/1", stats.FraudDetected, stats.Legitimate)
	}
	if stats.TotalAmount != 4950 {
		t.Errorf("total amount = %v, want 4950", stats.TotalAmount)
	}
	if stats.FraudAmount != 4800 {
		t.Errorf("fraud amount = %v, want 4800", stats.FraudAmount)
	}
	if stats.HighRisk != 1 || stats.LowRisk != 1 {
		t.Errorf("risk split = %d high / %d low, want 1/1", stats.HighRisk, stats.LowRisk)
	}
	if stats.AlertsGenerated != 1 {
		t.Errorf("alerts generated = %d, want 1", stats.AlertsGenerated)
	}

	// The rollup is mirrored into live cache counters.
	if scored, _ := local.GetCounter(ctx, "scored:"+date); scored != 2 {
		t.Errorf("scored counter = %d, want 2", scored)
	}
	if alerts, _ := local.GetCounter(ctx, "alerts:"+date); alerts != 1 {
		t.Errorf("alert counter = %d, want 1", alerts)
	}
}

func TestStatsWorkerIgnoresMalformedEvents(t *testing.T) {
	repo := newTestRepo(t)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewStatsWorker(eventBus, repo, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()
	if err := eventBus.Publish(ctx, domain.TopicPredictionScored, []byte("not json")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// A bad payload must not wedge the worker.
	publishScored(t, eventBus, domain.ScoredEvent{
		TransactionID: "tx-ok",
		Date:          "2024-09-16",
		Amount:        100,
		RiskLevel:     domain.RiskLow,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, err := repo.GetDailyStats(ctx, "2024-09-16"); err == nil && s.Total == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("worker stopped processing after malformed event")
}

func TestStatsWorkerStats(t *testing.T) {
	repo := newTestRepo(t)
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	w := NewStatsWorker(eventBus, repo, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("subscription count = %d, want 1", stats.SubscriptionCount)
	}
	if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicPredictionScored {
		t.Errorf("topics = %v", stats.Topics)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if w.GetStats().SubscriptionCount != 0 {
		t.Error("subscriptions not cleared after stop")
	}
}
