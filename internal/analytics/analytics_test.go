package analytics

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "analytics-test-*.db")
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

func seedRecord(t *testing.T, repo domain.Repository, id string, fraud bool, probability float64, riskLevel string) {
	t.Helper()
	now := time.Now().UTC()
	rec := &domain.TransactionRecord{
		ID:                 id,
		Amount:             500,
		TransactionDate:    "15/09/2024 14:30",
		Type:               "Debit",
		Location:           "London",
		Channel:            "Online",
		CustomerAge:        34,
		CustomerOccupation: "Engineer",
		AccountBalance:     5000,
		AccountStatus:      "Active",
		Duration:           45,
		LoginAttempts:      1,
		PrevDate:           "14/09/2024 14:30",
		SenderCountry:      "GB",
		ReceiverCountry:    "GB",
		SenderCurrency:     "GBP",
		ReceiverCurrency:   "GBP",
		InvalidPinStatus:   "Valid",
		IsFraud:            fraud,
		Probability:        probability,
		RiskLevel:          riskLevel,
		Confidence:         90,
		Action:             "ALLOW",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repo.SaveTransaction(context.Background(), rec); err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
}

func TestDashboard(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, cache.NewLRUCache(100))
	ctx := context.Background()

	seedRecord(t, repo, "tx-1", false, 0.05, domain.RiskLow)
	seedRecord(t, repo, "tx-2", true, 0.95, domain.RiskHigh)

	dash, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash.Transactions.Total != 2 || dash.Transactions.FraudCount != 1 {
		t.Errorf("transactions = %+v, want 2 total / 1 fraud", dash.Transactions)
	}
	if dash.Alerts.Total != 0 {
		t.Errorf("alerts total = %d, want 0", dash.Alerts.Total)
	}

	// Second read is served from cache; rows written after the first read
	// must not appear until the TTL passes.
	seedRecord(t, repo, "tx-3", false, 0.05, domain.RiskLow)
	dash2, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash2.Transactions.Total != 2 {
		t.Errorf("expected cached total 2, got %d", dash2.Transactions.Total)
	}
}

func TestTrendsAndHotspots(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	seedRecord(t, repo, "tx-1", true, 0.92, domain.RiskHigh)
	seedRecord(t, repo, "tx-2", false, 0.45, domain.RiskMedium)
	seedRecord(t, repo, "tx-3", false, 0.05, domain.RiskLow)

	t.Run("Trends", func(t *testing.T) {
		points, err := svc.Trends(ctx, 7)
		if err != nil {
			t.Fatalf("Trends failed: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("expected 1 point, got %d", len(points))
		}
		if points[0].Total != 3 || points[0].Fraudulent != 1 || points[0].UnderReview != 1 {
			t.Errorf("point = %+v", points[0])
		}
	})

	t.Run("Hotspots", func(t *testing.T) {
		counts, err := svc.Hotspots(ctx, 5)
		if err != nil {
			t.Fatalf("Hotspots failed: %v", err)
		}
		if len(counts) != 1 || counts[0].Location != "London" {
			t.Errorf("hotspots = %+v", counts)
		}
	})

	t.Run("RiskDistribution", func(t *testing.T) {
		buckets, err := svc.RiskDistribution(ctx)
		if err != nil {
			t.Fatalf("RiskDistribution failed: %v", err)
		}
		if len(buckets) != 3 {
			t.Errorf("expected 3 buckets, got %d", len(buckets))
		}
	})

	t.Run("TransactionTypes", func(t *testing.T) {
		stats, err := svc.TransactionTypes(ctx)
		if err != nil {
			t.Fatalf("TransactionTypes failed: %v", err)
		}
		if len(stats) != 1 || stats[0].Total != 3 {
			t.Errorf("type stats = %+v", stats)
		}
	})

	t.Run("Recent", func(t *testing.T) {
		records, err := svc.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})
}

func TestDaily(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := repo.IncrementDailyStats(ctx, "2024-09-15", domain.DailyStats{Total: 3, FraudDetected: 1}); err != nil {
		t.Fatalf("IncrementDailyStats failed: %v", err)
	}

	stats, err := svc.Daily(ctx, "2024-09-15")
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	if stats.Total != 3 || stats.FraudDetected != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := svc.Daily(ctx, "15/09/2024"); err == nil {
		t.Error("expected error for malformed date")
	}

	if _, err := svc.Daily(ctx, "1999-01-01"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
