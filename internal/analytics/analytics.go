// Package analytics serves the dashboard read-side: aggregates computed by
// the repository, cached briefly so bursts of dashboard traffic never hammer
// the database.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// cacheTTL is deliberately short: dashboards tolerate slightly stale
// aggregates, the database does not tolerate a refresh storm.
const cacheTTL = 30 * time.Second

// Dashboard is the combined overview served at /stats/dashboard.
type Dashboard struct {
	Transactions *domain.TransactionStats `json:"transactions"`
	Alerts       *domain.AlertStats       `json:"alerts"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

// Service computes dashboard aggregates over the repository.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates an analytics service. cache may be nil; aggregates are
// then computed on every call.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Dashboard returns the combined transaction and alert overview.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var dash Dashboard
	if s.cached(ctx, "stats:dashboard", &dash) {
		return &dash, nil
	}

	txStats, err := s.repo.TransactionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	alertStats, err := s.repo.AlertStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}

	dash = Dashboard{
		Transactions: txStats,
		Alerts:       alertStats,
		GeneratedAt:  time.Now().UTC(),
	}
	s.store(ctx, "stats:dashboard", dash)
	return &dash, nil
}

// Trends returns the per-day scoring series for the trailing window.
func (s *Service) Trends(ctx context.Context, days int) ([]domain.TrendPoint, error) {
	if days <= 0 {
		days = 30
	}

	key := fmt.Sprintf("stats:trends:%d", days)
	var points []domain.TrendPoint
	if s.cached(ctx, key, &points) {
		return points, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := s.repo.DailyTrends(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("daily trends: %w", err)
	}

	s.store(ctx, key, points)
	return points, nil
}

// Hotspots returns the top fraud locations.
func (s *Service) Hotspots(ctx context.Context, limit int) ([]domain.LocationCount, error) {
	if limit <= 0 {
		limit = 10
	}

	key := fmt.Sprintf("stats:hotspots:%d", limit)
	var counts []domain.LocationCount
	if s.cached(ctx, key, &counts) {
		return counts, nil
	}

	counts, err := s.repo.FraudByLocation(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fraud by location: %w", err)
	}

	s.store(ctx, key, counts)
	return counts, nil
}

// RiskDistribution returns transaction counts per risk level.
func (s *Service) RiskDistribution(ctx context.Context) ([]domain.RiskBucket, error) {
	var buckets []domain.RiskBucket
	if s.cached(ctx, "stats:risk", &buckets) {
		return buckets, nil
	}

	buckets, err := s.repo.RiskDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk distribution: %w", err)
	}

	s.store(ctx, "stats:risk", buckets)
	return buckets, nil
}

// TransactionTypes returns per-type aggregates.
func (s *Service) TransactionTypes(ctx context.Context) ([]domain.TypeStats, error) {
	var stats []domain.TypeStats
	if s.cached(ctx, "stats:types", &stats) {
		return stats, nil
	}

	stats, err := s.repo.StatsByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats by type: %w", err)
	}

	s.store(ctx, "stats:types", stats)
	return stats, nil
}

// AlertsSummary returns alert counts per severity.
func (s *Service) AlertsSummary(ctx context.Context) ([]domain.SeverityCount, error) {
	var counts []domain.SeverityCount
	if s.cached(ctx, "stats:alerts", &counts) {
		return counts, nil
	}

	counts, err := s.repo.AlertSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert summary: %w", err)
	}

	s.store(ctx, "stats:alerts", counts)
	return counts, nil
}

// Recent returns the latest scored transactions. Not cached: reviewers
// expect their newest scoring calls to show up immediately.
func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.RecentTransactions(ctx, limit)
}

// Daily returns the worker-maintained rollup for one date (YYYY-MM-DD).
func (s *Service) Daily(ctx context.Context, date string) (*domain.DailyStats, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return s.repo.GetDailyStats(ctx, date)
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || data == nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("failed to decode cached aggregate", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, cacheTTL); err != nil {
		slog.Warn("failed to cache aggregate", "key", key, "error", err)
	}
}
