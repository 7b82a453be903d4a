package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/flowstate/pkg/adapters/redis"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Publish(t *testing.T) {
	_, client := newMiniredis(t)
	publisher := redis.NewPublisher(client, "test:")
	ctx := context.Background()

	channel := publisher.Channel(string(domain.EventTransitionExecuted))
	assert.Equal(t, "test:events:transition.executed", channel)

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	event := domain.Event{
		ID:           "evt-1",
		Topic:        string(domain.EventTransitionExecuted),
		Type:         domain.EventTransitionExecuted,
		WorkflowName: "orders",
		EntityID:     "o-1",
		Transition:   &domain.TransitionRecord{From: "PENDING", To: "PROCESSING", Event: "process"},
	}
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got domain.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "evt-1", got.ID)
		assert.Equal(t, "PROCESSING", got.Transition.To)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}
