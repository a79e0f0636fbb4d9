// Kestrel - Fraud detection scoring over pre-trained model artifacts.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/analytics"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/triage"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := loadConfig()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	slog.SetDefault(slog.New(handler))

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"artifacts", cfg.Artifacts.Dir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load model artifacts. A load failure keeps the service running but
	// unready: /predict returns 503 until valid artifacts are supplied.
	bundle, err := artifact.Load(cfg.Artifacts.Dir)
	if err != nil {
		slog.Error("failed to load model artifacts, scoring disabled",
			"dir", cfg.Artifacts.Dir,
			"error", err,
		)
		bundle = nil
	} else {
		slog.Info("model artifacts loaded",
			"dir", cfg.Artifacts.Dir,
			"tree_nodes", len(bundle.Classifier.ChildrenLeft),
			"features", bundle.Scaler.NumFeatures(),
		)
	}

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize triage flag engine
	flags, err := triage.NewEngine()
	if err != nil {
		slog.Error("failed to initialize flag engine", "error", err)
		os.Exit(1)
	}
	if err := loadFlagRules(cfg, flags); err != nil {
		slog.Error("failed to load flag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("flag engine initialized", "rules_count", flags.RuleCount())

	// Initialize scoring pipeline
	pipeline := scoring.NewPipeline(scoring.NewEngine(bundle), flags, repo, busImpl)

	// Initialize statistics worker
	statsWorker := worker.NewStatsWorker(busImpl, repo, cacheImpl)
	if err := statsWorker.Start(); err != nil {
		slog.Error("failed to start statistics worker", "error", err)
		os.Exit(1)
	}

	// Initialize webhook notifier
	notifier := notify.New(busImpl, cfg.Notify.WebhookURL)
	if err := notifier.Start(); err != nil {
		slog.Error("failed to start webhook notifier", "error", err)
		os.Exit(1)
	}

	// Initialize analytics over the repository with the cache in front
	statsSvc := analytics.NewService(repo, cacheImpl)

	// Initialize Server
	srv := api.NewServer(cfg.Server, pipeline, statsSvc, repo, cacheImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"scoring", pipeline.Ready(),
	)

	printBanner(cfg, Version, pipeline.Ready())

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop event consumers first so in-flight messages drain
	if err := statsWorker.Stop(); err != nil {
		slog.Error("failed to stop statistics worker", "error", err)
	}
	if err := notifier.Stop(); err != nil {
		slog.Error("failed to stop webhook notifier", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadConfig applies KESTREL_* environment overrides on top of the default
// single-node configuration.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if v := os.Getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("KESTREL_PORT"); v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("KESTREL_MODEL_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("KESTREL_TRIAGE_RULES"); v != "" {
		cfg.Artifacts.TriagePath = v
	}

	if v := os.Getenv("KESTREL_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := envInt("KESTREL_POSTGRES_PORT"); v > 0 {
		cfg.Repository.PostgresPort = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := os.Getenv("KESTREL_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}

	if v := os.Getenv("KESTREL_EVENTBUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	if v := os.Getenv("KESTREL_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}

	if v := os.Getenv("KESTREL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KESTREL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("KESTREL_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	return cfg
}

func envInt(name string) int {
	v, _ := strconv.Atoi(os.Getenv(name))
	return v
}

// loadFlagRules loads the configured triage rule file, falling back to the
// builtin flag set when none is configured.
func loadFlagRules(cfg *domain.Config, flags *triage.Engine) error {
	if cfg.Artifacts.TriagePath == "" {
		return flags.LoadRules(triage.BuiltinRules())
	}

	rules, err := triage.LoadFile(cfg.Artifacts.TriagePath)
	if err != nil {
		return err
	}
	slog.Info("flag rules loaded from file", "path", cfg.Artifacts.TriagePath, "count", len(rules))
	return flags.LoadRules(rules)
}

func printBanner(cfg *domain.Config, version string, ready bool) {
	scoringState := "ready"
	if !ready {
		scoringState = "UNAVAILABLE (artifacts not loaded)"
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║       Fraud Detection Scoring API         ║")
	fmt.Println("  ║      Every transaction, weighed.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Scoring:  %s\n", scoringState)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict                 - Score a transaction")
	fmt.Println("    POST /predict/batch           - Score a batch of transactions")
	fmt.Println("    GET  /transactions            - List scored transactions")
	fmt.Println("    POST /transactions/{id}/review- Mark a transaction reviewed")
	fmt.Println("    GET  /alerts                  - List fraud alerts")
	fmt.Println("    POST /alerts/{id}/update      - Update alert status")
	fmt.Println("    GET  /stats/dashboard         - Dashboard overview")
	fmt.Println("    GET  /stats/daily/{date}      - Daily rollup")
	fmt.Println("    GET  /model-info              - Loaded model details")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println("    GET  /ready                   - Scoring readiness")
	fmt.Println()
}
