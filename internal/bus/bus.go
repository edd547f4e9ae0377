// Package bus provides event bus implementations for downpay.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/downpay/internal/domain"
)

// New creates a new event bus based on configuration.
// "channel" returns an in-process ChannelBus; "nats" returns a NATSBus
// shared by every node.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// MetadataReplyTo names the topic a Request expects its reply on.
const MetadataReplyTo = "reply_to"

const requestTimeout = 30 * time.Second

// Reply answers a request message on the topic named in its metadata.
func Reply(ctx context.Context, b domain.EventBus, msg *domain.Message, payload []byte) error {
	replyTo := msg.Metadata[MetadataReplyTo]
	if replyTo == "" {
		return fmt.Errorf("message %s expects no reply", msg.ID)
	}
	return b.Publish(ctx, msg.TenantID, replyTo, payload)
}

// awaitReply subscribes to a one-off reply topic, hands it to send and
// waits for the first reply.
func awaitReply(ctx context.Context, b domain.EventBus, tenantID, topic string, send func(replyTo string) error) ([]byte, error) {
	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := send(replyTopic); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(requestTimeout)
	defer timeout.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, fmt.Errorf("request to %s timed out", topic)
	}
}

// PublishJSON encodes v and publishes it to the tenant's topic.
func PublishJSON(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// Decode unmarshals a message payload into v.
func Decode(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s message %s: %w", msg.Topic, msg.ID, err)
	}
	return nil
}

func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
