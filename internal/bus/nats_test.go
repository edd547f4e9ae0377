package bus

import (
	"context"
	"testing"

	"github.com/opensource-finance/downpay/internal/domain"
)

func TestMakeSubject(t *testing.T) {
	got := makeSubject("tenant-a", domain.TopicQuoteSubmitted)
	if got != "downpay.tenant-a.quote.submitted" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestNATSMessageHeaders(t *testing.T) {
	msg := newMessage("tenant-a", domain.TopicQuoteSubmitted, []byte(`{"tableId":"standard"}`))
	msg.Metadata[MetadataReplyTo] = "quote.submitted.reply.abc"

	m := toNATSMsg(msg)
	if m.Subject != "downpay.tenant-a.quote.submitted" {
		t.Errorf("unexpected subject %q", m.Subject)
	}
	if string(m.Data) != `{"tableId":"standard"}` {
		t.Errorf("payload must travel unwrapped, got %s", m.Data)
	}

	got := fromNATSMsg(m, "tenant-a", domain.TopicQuoteSubmitted)
	if got.ID != msg.ID {
		t.Errorf("expected id %s, got %s", msg.ID, got.ID)
	}
	if got.Timestamp != msg.Timestamp {
		t.Errorf("expected timestamp %d, got %d", msg.Timestamp, got.Timestamp)
	}
	if got.Metadata[MetadataReplyTo] != "quote.submitted.reply.abc" {
		t.Errorf("reply_to lost: %v", got.Metadata)
	}
	if got.TenantID != "tenant-a" || got.Topic != domain.TopicQuoteSubmitted {
		t.Errorf("unexpected routing %s/%s", got.TenantID, got.Topic)
	}
}

func TestReplyWithoutReplyTo(t *testing.T) {
	b := NewChannelBus(1)
	defer b.Close()

	msg := newMessage("tenant-a", "echo", nil)
	if err := Reply(context.Background(), b, msg, []byte("x")); err == nil {
		t.Error("expected error for message without reply topic")
	}
}
