package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

const transportPubSub = "pubsub"

// alertEnvelope is the JSON body published for each alert.
type alertEnvelope struct {
	Item    watch.Item `json:"item"`
	Keyword string     `json:"keyword,omitempty"`
	Text    string     `json:"text"`
	SentAt  time.Time  `json:"sent_at"`
}

// PubSub mirrors alerts to a Pub/Sub topic.
type PubSub struct {
	topic *pubsub.Topic
	clock watch.Clock
}

// NewPubSub wraps an existing topic.
func NewPubSub(topic *pubsub.Topic, clock watch.Clock) (*PubSub, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &PubSub{topic: topic, clock: clock}, nil
}

// Send publishes msg and waits for the server ack.
func (p *PubSub) Send(ctx context.Context, msg watch.Message) error {
	data, err := json.Marshal(alertEnvelope{
		Item:    msg.Item,
		Keyword: msg.Keyword,
		Text:    msg.Text,
		SentAt:  p.clock.Now(),
	})
	if err != nil {
		return &watch.TransportError{Transport: transportPubSub, Err: fmt.Errorf("marshal payload: %w", err)}
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"item_id": msg.Item.ID, "keyword": msg.Keyword},
	})
	if _, err := result.Get(ctx); err != nil {
		return &watch.TransportError{Transport: transportPubSub, Err: fmt.Errorf("publish message: %w", err)}
	}
	return nil
}

// Stop flushes pending publishes.
func (p *PubSub) Stop() {
	p.topic.Stop()
}
