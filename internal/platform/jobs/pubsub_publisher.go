package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/craftlane/api/internal/services"
)

// PubSubLedgerPublisher publishes committed inventory ledger entries to a
// Pub/Sub audit topic.
type PubSubLedgerPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.LedgerEventPublisher = (*PubSubLedgerPublisher)(nil)

// NewPubSubLedgerPublisher constructs a Pub/Sub backed ledger event publisher.
func NewPubSubLedgerPublisher(topic *pubsub.Topic) (*PubSubLedgerPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub ledger publisher: topic is required")
	}
	return &PubSubLedgerPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishLedgerEntry enqueues one ledger entry message on the configured topic.
func (p *PubSubLedgerPublisher) PublishLedgerEntry(ctx context.Context, message services.LedgerEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub ledger publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal ledger entry: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "entryId", message.EntryID)
	setAttr(attrs, "productId", message.ProductID)
	setAttr(attrs, "variantId", message.VariantID)
	setAttr(attrs, "changeType", message.ChangeType)
	setAttr(attrs, "actorId", message.ActorID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish ledger entry: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
