package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (single node) or NATS (multi-node).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

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
	TenantID  string            `json:"tenantId"`
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
	Type string `env:"TYPE" envDefault:"channel"`

	// Channel settings
	ChannelBufferSize int `env:"CHANNEL_BUFFER_SIZE" envDefault:"1000"`

	// NATS settings
	NATSUrl           string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSToken         string `env:"NATS_TOKEN"`
	NATSMaxReconnects int    `env:"NATS_MAX_RECONNECTS" envDefault:"10"`
	NATSReconnectWait int    `env:"NATS_RECONNECT_WAIT" envDefault:"5"` // seconds
	NATSQueueGroup    string `env:"NATS_QUEUE_GROUP" envDefault:"downpay-workers"`

	// Tenants whose submitted quotes this node evaluates asynchronously.
	WorkerTenants []string `env:"WORKER_TENANTS" envSeparator:","`
}

// Topics used between the API and the async worker.
const (
	TopicQuoteSubmitted = "quote.submitted"
	TopicQuoteEvaluated = "quote.evaluated"
	TopicQuoteFailed    = "quote.failed"
	TopicTableChanged   = "table.changed"
)

// QuoteSubmission is the payload of TopicQuoteSubmitted.
type QuoteSubmission struct {
	SubmissionID string `json:"submissionId"`
	TableID      string `json:"tableId"`
	TraceID      string `json:"traceId,omitempty"`
	Quote        *Quote `json:"quote"`
}

// QuoteFailure is the payload of TopicQuoteFailed.
type QuoteFailure struct {
	SubmissionID string `json:"submissionId"`
	QuoteID      string `json:"quoteId"`
	TableID      string `json:"tableId"`
	Error        string `json:"error"`
}

// TableChange is the payload of TopicTableChanged. Every node drops its
// compiled copy of the table when it sees one.
type TableChange struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"` // saved, deleted
}
