package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node) or NATS (multi node).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	TopicPredictionScored = "kestrel.prediction.scored"
	TopicAlertCreated     = "kestrel.alert.created"
)

// ScoredEvent is published on TopicPredictionScored after each persisted
// scoring call; the statistics worker folds it into the daily rollup.
type ScoredEvent struct {
	TransactionID string  `json:"transactionId"`
	Date          string  `json:"date"` // YYYY-MM-DD
	Amount        float64 `json:"amount"`
	IsFraud       bool    `json:"isFraud"`
	RiskLevel     string  `json:"riskLevel"`
	AlertCreated  bool    `json:"alertCreated"`
}

// AlertEvent is published on TopicAlertCreated when a new alert is stored.
type AlertEvent struct {
	AlertID       string  `json:"alertId"`
	TransactionID string  `json:"transactionId"`
	Severity      string  `json:"severity"`
	Probability   float64 `json:"probability"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	Action        string  `json:"action"`
}
