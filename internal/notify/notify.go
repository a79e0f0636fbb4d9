// Package notify delivers alert webhooks. It subscribes to the alert topic
// and POSTs each alert event to the configured endpoint.
//
// Deliveries ride the event bus, so they never block a scoring response.
// Failed deliveries are logged but not retried (a production deployment
// would put a persistent queue with backoff in front of the endpoint).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Notifier forwards alert events to a webhook URL.
type Notifier struct {
	bus    domain.EventBus
	url    string
	client *http.Client

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New(bus domain.EventBus, url string) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		bus: bus,
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the alert topic. A notifier without a URL is inert.
func (n *Notifier) Start() error {
	if n.url == "" {
		slog.Info("webhook notifier disabled, no URL configured")
		return nil
	}

	sub, err := n.bus.Subscribe(n.ctx, domain.TopicAlertCreated, n.handleAlert)
	if err != nil {
		return err
	}
	n.subscriptions = append(n.subscriptions, sub)

	slog.Info("webhook notifier started", "url", n.url)
	return nil
}

func (n *Notifier) handleAlert(ctx context.Context, msg *domain.Message) error {
	var event domain.AlertEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("webhook: failed to parse alert event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	n.send(ctx, &event)
	return nil
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(ctx context.Context, event *domain.AlertEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("webhook: failed to marshal payload", "alert_id", event.AlertID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: failed to build request", "alert_id", event.AlertID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Kestrel-Event", "fraud_alert")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "alert_id", event.AlertID, "url", n.url, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("webhook: delivered",
		"alert_id", event.AlertID,
		"url", n.url,
		"status", resp.StatusCode,
		"transaction_id", event.TransactionID,
		"severity", event.Severity,
	)
}

// Stop unsubscribes from the alert topic.
func (n *Notifier) Stop() error {
	n.cancel()
	for _, sub := range n.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("webhook: failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	n.subscriptions = nil
	return nil
}
