package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Publisher implements ports.Publisher with Redis PUBLISH.
// Each event goes to the channel prefix + "events:" + event.Topic as JSON.
type Publisher struct {
	client backend.UniversalClient
	prefix string
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher creates a Redis event publisher.
func NewPublisher(client backend.UniversalClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// Channel returns the channel events of topic are published on.
func (p *Publisher) Channel(topic string) string {
	return p.prefix + "events:" + topic
}

// Publish sends the event. Redis pub/sub is fire-and-forget: events published
// while nobody is subscribed are lost.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.Topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Topic, err)
	}
	return nil
}
