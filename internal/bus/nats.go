package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/downpay/internal/domain"
)

const (
	subjectPrefix = "downpay"

	headerMessageID  = "Downpay-Message-Id"
	headerTimestamp  = "Downpay-Timestamp"
	headerMetaPrefix = "Downpay-Meta-"
)

// queueTopics are consumed by exactly one node per message; every other
// topic fans out to all subscribers.
var queueTopics = map[string]bool{
	domain.TopicQuoteSubmitted: true,
}

// NATSBus implements EventBus using NATS.
// Used when several downpay nodes share submissions and table changes.
// Payloads travel as raw NATS data; message ID, timestamp and metadata
// travel as headers.
type NATSBus struct {
	mu            sync.Mutex
	conn          *nats.Conn
	queueGroup    string
	subscriptions map[string]*natsSubscription
}

type natsSubscription struct {
	id    string
	topic string
	sub   *nats.Subscription
	bus   *NATSBus
}

// NewNATSBus connects to NATS, retrying up to NATSMaxReconnects times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects <= 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait <= 0 {
		cfg.NATSReconnectWait = 5
	}
	if cfg.NATSQueueGroup == "" {
		cfg.NATSQueueGroup = "downpay-workers"
	}

	conn, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
		"queue_group", cfg.NATSQueueGroup,
	)

	return &NATSBus{
		conn:          conn,
		queueGroup:    cfg.NATSQueueGroup,
		subscriptions: make(map[string]*natsSubscription),
	}, nil
}

func connectNATS(cfg domain.EventBusConfig) (*nats.Conn, error) {
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.Name("downpay"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected",
				"error", err,
				"will_reconnect", !nc.IsClosed(),
			)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "error", err, "subject", subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err := nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		if attempt < cfg.NATSMaxReconnects {
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, lastErr)
}

// Publish sends a message to the tenant's topic subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return b.publish(newMessage(tenantID, topic, payload))
}

func (b *NATSBus) publish(msg *domain.Message) error {
	if err := b.conn.PublishMsg(toNATSMsg(msg)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe registers a handler for the tenant's topic. Topics consumed by
// workers join the bus queue group so each message is handled once.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	cb := func(m *nats.Msg) {
		msg := fromNATSMsg(m, tenantID, topic)
		if err := handler(ctx, msg); err != nil {
			slog.Error("handler error",
				"subject", m.Subject,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	subject := makeSubject(tenantID, topic)

	var natsSub *nats.Subscription
	var err error
	if queueTopics[topic] {
		natsSub, err = b.conn.QueueSubscribe(subject, b.queueGroup, cb)
	} else {
		natsSub, err = b.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	sub := &natsSubscription{
		id:    uuid.New().String(),
		topic: topic,
		sub:   natsSub,
		bus:   b,
	}

	b.mu.Lock()
	b.subscriptions[sub.id] = sub
	b.mu.Unlock()

	return sub, nil
}

// Request publishes a message carrying a reply topic and waits for the
// first reply on it.
func (b *NATSBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	return awaitReply(ctx, b, tenantID, topic, func(replyTo string) error {
		msg := newMessage(tenantID, topic, payload)
		msg.Metadata[MetadataReplyTo] = replyTo
		return b.publish(msg)
	})
}

// Ping checks NATS connectivity.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subscriptions {
		_ = sub.sub.Unsubscribe()
	}
	b.subscriptions = make(map[string]*natsSubscription)
	b.mu.Unlock()

	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

// Unsubscribe removes the subscription.
func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}

func makeSubject(tenantID, topic string) string {
	return subjectPrefix + "." + tenantID + "." + topic
}

func toNATSMsg(msg *domain.Message) *nats.Msg {
	m := nats.NewMsg(makeSubject(msg.TenantID, msg.Topic))
	m.Data = msg.Payload
	m.Header.Set(headerMessageID, msg.ID)
	m.Header.Set(headerTimestamp, strconv.FormatInt(msg.Timestamp, 10))
	for k, v := range msg.Metadata {
		m.Header.Set(headerMetaPrefix+k, v)
	}
	return m
}

// fromNATSMsg rebuilds a bus message. Tenant and topic come from the
// subscription, not the wire.
func fromNATSMsg(m *nats.Msg, tenantID, topic string) *domain.Message {
	msg := &domain.Message{
		ID:       m.Header.Get(headerMessageID),
		TenantID: tenantID,
		Topic:    topic,
		Payload:  m.Data,
		Metadata: make(map[string]string),
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if ts, err := strconv.ParseInt(m.Header.Get(headerTimestamp), 10, 64); err == nil {
		msg.Timestamp = ts
	} else {
		msg.Timestamp = time.Now().UnixNano()
	}
	// Proxies may canonicalize header case.
	for k, vs := range m.Header {
		if key, ok := strings.CutPrefix(k, headerMetaPrefix); ok && len(vs) > 0 {
			msg.Metadata[strings.ToLower(strings.ReplaceAll(key, "-", "_"))] = vs[0]
		}
	}
	return msg
}
